// Package verifyingclient implements a generic "submit once, verify with
// quorum" pattern: a task runs against one randomly chosen healthy peer,
// then its result is independently re-checked against N other peers
// (falling back to the primary itself if too few peers are healthy and
// AllowSelfVerification is set),
// with per-peer retry under exponential backoff and a configurable
// tolerance for partial disagreement.
package verifyingclient

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/xerrors"
)

// Tester reports whether client is currently healthy.
type Tester[T any] interface {
	Test(ctx context.Context, client T) bool
}

// TesterFunc adapts a plain function to Tester.
type TesterFunc[T any] func(ctx context.Context, client T) bool

func (f TesterFunc[T]) Test(ctx context.Context, client T) bool { return f(ctx, client) }

// FailureStrategy selects how disagreement among verifiers is handled.
type FailureStrategy struct {
	// Kind is either "error" (any disagreement fails verification) or
	// "accept_with_n_successes" (agreement from N peers is sufficient).
	Kind string
	N    int
}

const (
	FailureStrategyError             = "error"
	FailureStrategyAcceptWithNSuccess = "accept_with_n_successes"
)

// Options configures a VerifyingClient.
type Options struct {
	HealthCheckTimeout             time.Duration
	VerificationClientCount        int
	MinimumVerificationClientCount int
	AllowSelfVerification          bool
	MaxResubmits                   int
	FailureStrategy                FailureStrategy
}

// DefaultOptions mirrors the conservative defaults used when a caller has
// not tuned verification behavior: verify with up to 3 peers, require at
// least 1, and treat any disagreement as failure.
func DefaultOptions() Options {
	return Options{
		HealthCheckTimeout:             5 * time.Second,
		VerificationClientCount:        3,
		MinimumVerificationClientCount: 1,
		AllowSelfVerification:          true,
		MaxResubmits:                   0,
		FailureStrategy:                FailureStrategy{Kind: FailureStrategyError},
	}
}

// PooledClient pairs a client with a stable identity, so two pooled
// clients can be compared for equality (e.g. to exclude the primary from
// the verifier pool) without requiring T itself to be comparable.
type PooledClient[T any] struct {
	Id     uint64
	Client T
}

// VerifyingClient pools a set of clients of type T behind a single task +
// quorum-verify protocol.
type VerifyingClient[T any] struct {
	clients []PooledClient[T]
	tester  Tester[T]
	options Options
	logger  *log.Logger
}

// New builds a VerifyingClient over clients, each assigned a stable id in
// slice order.
func New[T any](clients []T, tester Tester[T], options Options) *VerifyingClient[T] {
	pooled := make([]PooledClient[T], len(clients))
	for i, c := range clients {
		pooled[i] = PooledClient[T]{Id: uint64(i), Client: c}
	}
	return &VerifyingClient[T]{
		clients: pooled,
		tester:  tester,
		options: options,
		logger:  log.NewModuleLogger(log.ModuleVerifyingClient),
	}
}

// Get returns a single healthy client not present in excluding.
func (v *VerifyingClient[T]) Get(ctx context.Context, excluding []PooledClient[T]) (PooledClient[T], bool) {
	found := v.GetN(ctx, 1, excluding)
	if len(found) == 0 {
		return PooledClient[T]{}, false
	}
	return found[0], true
}

// GetN returns up to n healthy clients not present in excluding, probed in
// random order so repeated calls do not always favor the same peers.
func (v *VerifyingClient[T]) GetN(ctx context.Context, n int, excluding []PooledClient[T]) []PooledClient[T] {
	filtered := make([]PooledClient[T], 0, len(v.clients))
	for _, c := range v.clients {
		excludedHere := false
		for _, e := range excluding {
			if e.Id == c.Id {
				excludedHere = true
				break
			}
		}
		if !excludedHere {
			filtered = append(filtered, c)
		}
	}

	rand.Shuffle(len(filtered), func(i, j int) { filtered[i], filtered[j] = filtered[j], filtered[i] })

	result := make([]PooledClient[T], 0, n)
	for _, c := range filtered {
		alive := v.testWithTimeout(ctx, c.Client)
		if alive {
			result = append(result, c)
		}
		if len(result) >= n {
			break
		}
	}
	return result
}

func (v *VerifyingClient[T]) testWithTimeout(ctx context.Context, client T) bool {
	ctx, cancel := context.WithTimeout(ctx, v.options.HealthCheckTimeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- v.tester.Test(ctx, client) }()

	select {
	case alive := <-done:
		return alive
	case <-ctx.Done():
		return false
	}
}

// Task executes against a primary client and returns a result to verify.
type Task[T, V any] func(ctx context.Context, client T) (V, error)

// Verifier checks result against a (possibly different) client, returning
// whether it agrees. A permanent error (wrapped with backoff.Permanent)
// aborts retries for that one verifier; any other error is retried.
type Verifier[T, V any] func(ctx context.Context, client T, result V) (bool, error)

// BackOffFactory produces a fresh, independent backoff schedule each time
// it is called, so concurrent verifiers never share mutable backoff state.
type BackOffFactory func() backoff.BackOff

// Run executes task against one healthy client, then verifies the result
// against a quorum of peers, resubmitting up to Options.MaxResubmits times
// if verification fails outright.
func Run[T, V any](ctx context.Context, v *VerifyingClient[T], newBackOff BackOffFactory, task Task[T, V], verifier Verifier[T, V]) (V, error) {
	var zero V

	retries := v.options.MaxResubmits + 1
	for retries > 0 {
		res, err := runOnce(ctx, v, newBackOff, task, verifier)
		switch {
		case err == nil:
			return res, nil
		case err == xerrors.ErrVerificationFailed:
			v.logger.Warn("verification failed, resubmitting")
			retries--
		default:
			return zero, err
		}
	}
	return zero, xerrors.ErrVerificationFailed
}

func runOnce[T, V any](ctx context.Context, v *VerifyingClient[T], newBackOff BackOffFactory, task Task[T, V], verifier Verifier[T, V]) (V, error) {
	var zero V

	primary, ok := v.Get(ctx, nil)
	if !ok {
		return zero, xerrors.ErrNoClientsAvailable
	}

	res, err := task(ctx, primary.Client)
	if err != nil {
		return zero, err
	}

	verifiers := v.GetN(ctx, v.options.VerificationClientCount, []PooledClient[T]{primary})
	if len(verifiers) < v.options.VerificationClientCount {
		if v.options.AllowSelfVerification {
			verifiers = append(verifiers, primary)
		}

		if len(verifiers) < v.options.MinimumVerificationClientCount {
			return zero, &xerrors.NotEnoughClientsError{
				Have: len(verifiers),
				Need: v.options.MinimumVerificationClientCount,
			}
		}

		if len(verifiers) < v.options.VerificationClientCount {
			v.logger.Warn("not enough clients for verification, continuing with minimum threshold met",
				"have", len(verifiers), "wanted", v.options.VerificationClientCount,
				"minimum", v.options.MinimumVerificationClientCount)
		}
	}

	successCount := runVerifiers(ctx, verifiers, newBackOff, res, verifier)

	if successCount < len(verifiers) {
		v.logger.Error("verification failed for some peers after retrying",
			"failed", len(verifiers)-successCount, "total", len(verifiers))

		switch v.options.FailureStrategy.Kind {
		case FailureStrategyAcceptWithNSuccess:
			if successCount < v.options.FailureStrategy.N {
				return zero, xerrors.ErrVerificationFailed
			}
		default:
			return zero, xerrors.ErrVerificationFailed
		}
	}

	return res, nil
}

func runVerifiers[T, V any](ctx context.Context, verifiers []PooledClient[T], newBackOff BackOffFactory, res V, verifier Verifier[T, V]) int {
	var g errgroup.Group
	results := make([]bool, len(verifiers))

	for i, c := range verifiers {
		i, c := i, c
		g.Go(func() error {
			bo := backoff.WithContext(newBackOff(), ctx)
			ok, err := backoff.RetryWithData(func() (bool, error) {
				return verifier(ctx, c.Client, res)
			}, bo)
			if err == nil && ok {
				results[i] = true
			}
			return nil
		})
	}

	_ = g.Wait()

	count := 0
	for _, ok := range results {
		if ok {
			count++
		}
	}
	return count
}
