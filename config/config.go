// Package config loads and, on first run, writes wineventchain's single
// TOML configuration file, using naoina/toml with field-name-preserving
// settings.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"

	"github.com/RyanW02/wineventchain/log"
)

// tomlSettings ensures TOML keys match Go struct field names verbatim,
// rather than naoina/toml's default lower-cased normalization.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) {
			link = fmt.Sprintf(" (see %s)", rt.String())
		}
		return fmt.Errorf("field %q is not defined in %s%s", field, rt.String(), link)
	},
}

// FailureStrategyKind selects how a verifying client treats peer
// disagreement: either any disagreement is an error, or agreement from N
// peers (not necessarily all of them) is accepted.
type FailureStrategyKind string

const (
	FailureStrategyError              FailureStrategyKind = "error"
	FailureStrategyAcceptWithNSuccess FailureStrategyKind = "accept_with_n_successes"
)

// VerificationConfig configures a VerifyingClient instance.
type VerificationConfig struct {
	// NodesToQuery is how many peers (besides the primary) are asked to
	// verify each result.
	NodesToQuery int
	// NodesRequired is how many of those peers must agree for the
	// FailureStrategyAcceptWithNSuccess strategy.
	NodesRequired int
	FailureStrategy FailureStrategyKind
	MaxResubmits    int
	QueryTimeout    Duration

	// MaxPropagationDelay bounds the total time spent polling for a
	// submission's inclusion before giving up.
	MaxPropagationDelay Duration
	// PropagationRetryDelay is the base interval between inclusion polls.
	PropagationRetryDelay Duration

	// AllowSelfVerification permits the same peer that accepted a
	// submission to also stand in as one of its own verifiers, when fewer
	// than NodesToQuery other peers are available.
	AllowSelfVerification bool
}

// Config is the root configuration structure, written to and read from
// config.toml.
type Config struct {
	DataDir string

	Collector CollectorConfig
	Chain     ChainConfig
	OffChain  OffChainConfig

	PrincipalId string
	PrivateKey  Base64PrivateKey
}

// CollectorConfig selects which event channels this agent watches.
type CollectorConfig struct {
	// Channels are matched case-insensitively against
	// collector.Application/Security/Setup/System.
	Channels []string
	// RetrievePastEvents, when true, backfills every record already present
	// in a channel's log on startup rather than only events produced from
	// then on.
	RetrievePastEvents bool
}

// RetryConfig configures one leg's (blockchain or off-chain) disk-backed
// retry queue independently of the other leg's.
type RetryConfig struct {
	MaxQueueSize   int
	RetryIntervals []Duration
	CheckInterval  Duration
}

// ChainConfig configures the blockchain submitter.
type ChainConfig struct {
	Nodes        []string
	Verification VerificationConfig
	Retry        RetryConfig
}

// OffChainConfig configures the off-chain submitter.
type OffChainConfig struct {
	Nodes        []string
	Verification VerificationConfig
	Retry        RetryConfig
}

// DefaultConfig returns the configuration written out the first time the
// agent runs without a config.toml present.
func DefaultConfig() Config {
	defaultRetryIntervals := []Duration{
		{mustParse("1m")},
		{mustParse("5m")},
		{mustParse("15m")},
		{mustParse("30m")},
		{mustParse("1h")},
		{mustParse("3h")},
		{mustParse("6h")},
		{mustParse("1d")},
		{mustParse("3d")},
	}

	defaultVerification := VerificationConfig{
		NodesToQuery:          3,
		NodesRequired:         3,
		FailureStrategy:       FailureStrategyAcceptWithNSuccess,
		MaxResubmits:          0,
		QueryTimeout:          Duration{mustParse("3s")},
		MaxPropagationDelay:   Duration{mustParse("20s")},
		PropagationRetryDelay: Duration{mustParse("2s")},
		AllowSelfVerification: false,
	}

	defaultRetry := RetryConfig{
		MaxQueueSize:   500,
		RetryIntervals: defaultRetryIntervals,
		CheckInterval:  Duration{mustParse("1m")},
	}

	return Config{
		DataDir: "./data",
		Collector: CollectorConfig{
			Channels:           []string{"Security", "System"},
			RetrievePastEvents: false,
		},
		Chain: ChainConfig{
			Nodes: []string{
				"http://127.0.0.1:26657",
				"http://127.0.0.1:26658",
				"http://127.0.0.1:26659",
			},
			Verification: defaultVerification,
			Retry:        defaultRetry,
		},
		OffChain: OffChainConfig{
			Nodes: []string{
				"http://127.0.0.1:8080",
				"http://127.0.0.1:8081",
				"http://127.0.0.1:8082",
			},
			Verification: defaultVerification,
			Retry:        defaultRetry,
		},
		PrincipalId: "",
	}
}

func mustParse(s string) time.Duration {
	parsed, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Load reads config.toml from path. If the file does not exist, it writes
// out DefaultConfig and returns ErrDefaultConfigWritten so the caller can
// exit cleanly and let the operator fill in real values.
func Load(path string) (*Config, error) {
	logger := log.NewModuleLogger(log.ModuleConfig)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := write(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: writing default config: %w", err)
		}
		logger.Info("wrote default config, exiting", "path", path)
		return nil, ErrDefaultConfigWritten
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		var lineErr *toml.LineError
		if errors.As(err, &lineErr) {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	return &cfg, nil
}

func write(path string, cfg *Config) error {
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.WriteString(f, string(out))
	return err
}

// ErrDefaultConfigWritten is returned by Load when no config file existed
// and a default one was written in its place.
var ErrDefaultConfigWritten = errors.New("config: default config written, please review and restart")
