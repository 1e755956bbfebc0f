// Command agent runs the event-forwarding agent: it watches the configured
// Windows event log channels, submits each new record to the blockchain
// under quorum verification, then stores the full record off-chain, with
// disk-backed retry queues absorbing failures on either leg.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/RyanW02/wineventchain/blockchain"
	"github.com/RyanW02/wineventchain/collector"
	"github.com/RyanW02/wineventchain/config"
	"github.com/RyanW02/wineventchain/dispatch"
	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/offchain"
	"github.com/RyanW02/wineventchain/retryqueue"
	"github.com/RyanW02/wineventchain/state"
	"github.com/RyanW02/wineventchain/storage/kvstore"
	"github.com/RyanW02/wineventchain/verifyingclient"
)

var logger = log.NewModuleLogger(log.ModuleAgent)

var configFlag = cli.StringFlag{
	Name:  "config",
	Usage: "path to config.toml",
	Value: "config.toml",
}

// app is the entry point for this binary's command line, built on
// gopkg.in/urfave/cli.v1.
var app = cli.NewApp()

func init() {
	app.Name = "agent"
	app.Usage = "forwards Windows event log records to the blockchain and off-chain storage"
	app.Flags = []cli.Flag{configFlag}
	app.Action = runAction
	app.Commands = []cli.Command{
		{
			Name:      "validate",
			Usage:     "spot-check an off-chain record's hash against the chain, then exit",
			ArgsUsage: "<hex-event-id>",
			Flags:     []cli.Flag{configFlag},
			Action:    validateAction,
		},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		logger.Error("agent exited with error", "err", err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil || cfg == nil {
		return err
	}
	return run(cfg)
}

func validateAction(ctx *cli.Context) error {
	eventIdHex := ctx.Args().First()
	if eventIdHex == "" {
		return fmt.Errorf("agent: validate requires a hex-encoded event id argument")
	}

	cfg, err := loadConfig(ctx)
	if err != nil || cfg == nil {
		return err
	}
	return runValidate(cfg, eventIdHex)
}

// loadConfig reads config.toml at the path named by configFlag. It returns
// (nil, nil) when no config file existed and a default was just written,
// so the caller exits cleanly with status 0 without doing further work.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		if errors.Is(err, config.ErrDefaultConfigWritten) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	if len(cfg.Collector.Channels) == 0 {
		return fmt.Errorf("agent: no channels configured to collect (set collector.Channels in config.toml)")
	}

	kv, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("agent: opening state store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("failed to close state store cleanly", "err", err)
		}
	}()

	chainClient, offChainClient, err := buildClients(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("checking blockchain connectivity")
	if chainClient.Health(ctx) {
		logger.Info("blockchain connection established")
	} else {
		logger.Warn("blockchain health check failed; will keep collecting and retry submissions once a node is reachable")
	}

	logger.Info("checking off-chain connectivity")
	if offChainClient.Health(ctx) {
		logger.Info("off-chain connection established")
	} else {
		logger.Warn("off-chain health check failed; will keep collecting and retry submissions once a peer is reachable")
	}

	offChainRetry := offchain.NewRetryQueue(kv, offChainClient, retryOptions(cfg.OffChain.Retry))
	chainRetry := blockchain.NewRetryQueue(kv, chainClient, offChainClient, dispatch.OffChainRetryAdapter(offChainRetry), retryOptions(cfg.Chain.Retry))

	if err := offChainRetry.Start(ctx); err != nil {
		return fmt.Errorf("agent: starting off-chain retry queue: %w", err)
	}
	if err := chainRetry.Start(ctx); err != nil {
		return fmt.Errorf("agent: starting blockchain retry queue: %w", err)
	}

	orchestrator := dispatch.New(state.New(kv), chainClient, chainRetry, offChainClient, offChainRetry)

	collectors := make([]collector.Source, 0, len(cfg.Collector.Channels))
	for _, name := range cfg.Collector.Channels {
		ch, err := collector.ParseChannel(name)
		if err != nil {
			return fmt.Errorf("agent: invalid collector channel %q: %w", name, err)
		}

		logger.Info("collecting channel", "channel", ch.String())
		source, err := openSource(ctx, ch, cfg.Collector.RetrievePastEvents)
		if err != nil {
			return fmt.Errorf("agent: opening source for %s: %w", ch.String(), err)
		}
		collectors = append(collectors, source)

		c := collector.New(source, orchestrator.Handle)
		go c.Run(ctx)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info("received shutdown signal")

	cancel()

	for _, source := range collectors {
		if err := source.Close(); err != nil {
			logger.Error("failed to close collector cleanly", "err", err)
		}
	}

	// zap routinely fails to sync stdout on some platforms; not fatal.
	_ = log.Sync()

	return nil
}

// openSource is the single seam between this package's dependency wiring
// and a real OS event log subscription, which this repository does not
// implement (see collector.Source). It is left unimplemented here rather
// than backed by a fake, since a fake masquerading as production wiring in
// cmd/agent would be misleading; swap in a real collector.OpenFunc to run
// this binary against an actual event log.
func openSource(_ context.Context, ch collector.Channel, _ bool) (collector.Source, error) {
	return nil, fmt.Errorf("agent: no event log subscription backend wired for channel %s", ch.String())
}

func buildClients(cfg *config.Config) (*blockchain.Client, *offchain.Client, error) {
	chainSigner := blockchain.Signer{PrincipalId: cfg.PrincipalId, PrivateKey: cfg.PrivateKey.Key}
	offChainSigner := offchain.Signer{PrincipalId: cfg.PrincipalId, PrivateKey: cfg.PrivateKey.Key}

	chainClient := blockchain.New(
		cfg.Chain.Nodes,
		cfg.Chain.Verification.QueryTimeout.Duration,
		chainSigner,
		verifyingOptions(cfg.Chain.Verification),
		blockchain.PropagationOptions{
			RetryDelay:          cfg.Chain.Verification.PropagationRetryDelay.Duration,
			MaxPropagationDelay: cfg.Chain.Verification.MaxPropagationDelay.Duration,
		},
	)

	offChainClient, err := offchain.New(
		cfg.OffChain.Nodes,
		cfg.OffChain.Verification.QueryTimeout.Duration,
		offChainSigner,
		verifyingOptions(cfg.OffChain.Verification),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("agent: building off-chain client: %w", err)
	}

	return chainClient, offChainClient, nil
}

func verifyingOptions(v config.VerificationConfig) verifyingclient.Options {
	return verifyingclient.Options{
		HealthCheckTimeout:             v.QueryTimeout.Duration,
		VerificationClientCount:        v.NodesToQuery,
		MinimumVerificationClientCount: v.NodesRequired,
		AllowSelfVerification:          v.AllowSelfVerification,
		MaxResubmits:                   v.MaxResubmits,
		FailureStrategy: verifyingclient.FailureStrategy{
			Kind: string(v.FailureStrategy),
			N:    v.NodesRequired,
		},
	}
}

func retryOptions(r config.RetryConfig) retryqueue.Options {
	backoffs := make([]time.Duration, len(r.RetryIntervals))
	for i, d := range r.RetryIntervals {
		backoffs[i] = d.Duration
	}

	return retryqueue.Options{
		MaxQueueSize:  r.MaxQueueSize,
		Backoff:       backoffs,
		CheckInterval: r.CheckInterval.Duration,
	}
}

func runValidate(cfg *config.Config, eventIdHex string) error {
	decoded, err := hex.DecodeString(eventIdHex)
	if err != nil {
		return fmt.Errorf("agent: decoding validate event id: %w", err)
	}
	eventId := rpc.HexBytes(decoded)

	chainClient, offChainClient, err := buildClients(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stored, err := offChainClient.GetStoredEvent(ctx, eventId)
	if err != nil {
		return fmt.Errorf("agent: fetching off-chain record: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("agent: no off-chain record found for event %s", eventIdHex)
	}

	if err := stored.Validate(ctx, eventId, chainClient); err != nil {
		return fmt.Errorf("agent: validation failed for event %s: %w", eventIdHex, err)
	}

	logger.Info("off-chain record matches the chain's recorded hash", "eventId", eventIdHex)
	return nil
}
