// Package retryqueue wraps a diskqueue with per-item exponential-style
// backoff, retrying each queued item on a background scan loop until it
// either succeeds, is abandoned after its backoff schedule is exhausted,
// or the process restarts (at which point the queue picks up exactly
// where it left off, since it is disk-backed).
package retryqueue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RyanW02/wineventchain/diskqueue"
	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/storage/kvstore"
	"github.com/RyanW02/wineventchain/xerrors"
)

// Options configures a RetryQueue's backoff schedule and background scan.
type Options struct {
	QueueName     string
	MaxQueueSize  int
	Backoff       []time.Duration
	CheckInterval time.Duration
}

// retryItem is the envelope stored on disk for each queued item, tracking
// when it was first queued, when it was last retried, and how many times.
type retryItem[T any] struct {
	FirstAttempt time.Time `json:"first_attempt"`
	LastAttempt  time.Time `json:"last_attempt"`
	Attempts     int       `json:"attempts"`
	Item         T         `json:"item"`
}

// RetryHandler attempts to process item, returning a result to pass to
// SuccessCallback on success. Errors are treated as transient and retried
// per the configured backoff schedule.
type RetryHandler[T, U any] func(ctx context.Context, item T) (U, error)

// SuccessCallback is invoked exactly once, in its own goroutine, after
// RetryHandler succeeds for an item.
type SuccessCallback[U any] func(ctx context.Context, result U)

// RetryQueue retries items of type T via a RetryHandler that produces a
// U on success, consumed by a SuccessCallback.
type RetryQueue[T, U any] struct {
	queue   *diskqueue.DiskQueue[retryItem[T]]
	options Options
	logger  *log.Logger

	started         atomic.Bool
	retryHandler    RetryHandler[T, U]
	successCallback SuccessCallback[U]
}

// New builds a RetryQueue over a new diskqueue subtree named by
// options.QueueName. retryHandler and successCallback are consumed
// exactly once, by Start.
func New[T, U any](store *kvstore.Store, options Options, retryHandler RetryHandler[T, U], successCallback SuccessCallback[U]) *RetryQueue[T, U] {
	return &RetryQueue[T, U]{
		queue:           diskqueue.New[retryItem[T]](store, options.QueueName, options.MaxQueueSize),
		options:         options,
		logger:          log.NewModuleLogger(log.ModuleRetryQueue).With("queue", options.QueueName),
		retryHandler:    retryHandler,
		successCallback: successCallback,
	}
}

// Push enqueues item for retry, starting its backoff schedule from attempt
// zero.
func (q *RetryQueue[T, U]) Push(item T) (uint64, error) {
	now := time.Now().UTC()
	return q.queue.Push(retryItem[T]{
		FirstAttempt: now,
		LastAttempt:  now,
		Attempts:     0,
		Item:         item,
	})
}

// Start begins the background scan loop on its own goroutine. It may only
// be called once per RetryQueue; a second call returns
// xerrors.ErrRetryQueueAlreadyStarted, mirroring the one-shot capture of
// the retry/success closures this type is modeled on.
func (q *RetryQueue[T, U]) Start(ctx context.Context) error {
	if !q.started.CompareAndSwap(false, true) {
		return xerrors.ErrRetryQueueAlreadyStarted
	}

	if len(q.options.Backoff) == 0 {
		q.logger.Warn("no backoff durations configured, retry loop will not run")
		return nil
	}

	go q.loop(ctx)
	return nil
}

func (q *RetryQueue[T, U]) loop(ctx context.Context) {
	ticker := time.NewTicker(q.options.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.scan(ctx)
		}
	}
}

func (q *RetryQueue[T, U]) scan(ctx context.Context) {
	q.logger.Debug("checking retry queue")

	results, err := q.queue.Iter()
	if err != nil {
		q.logger.Error("error reading from retry queue", "err", err)
		return
	}

	now := time.Now().UTC()
	for _, result := range results {
		if result.Err != nil {
			q.logger.Error("skipping malformed retry queue entry", "err", result.Err)
			continue
		}
		entry := result.Item

		interval, ok := q.backoffFor(entry.Item.Attempts)
		if !ok {
			q.logger.Warn("retry attempts exhausted", "id", entry.Id)
			if err := q.queue.Remove(entry.Id); err != nil {
				q.logger.Error("error removing exhausted item", "id", entry.Id, "err", err)
			}
			continue
		}

		if entry.Item.LastAttempt.Add(interval).After(now) {
			continue
		}

		q.logger.Info("item due a retry", "id", entry.Id)
		res, err := q.attemptAndUpdate(ctx, entry.Id, entry.Item)
		if err != nil {
			q.logger.Error("retry attempt failed", "id", entry.Id, "err", err)
			continue
		}

		q.logger.Info("retry succeeded", "id", entry.Id)
		go q.successCallback(ctx, res)
	}
}

func (q *RetryQueue[T, U]) backoffFor(attempts int) (time.Duration, bool) {
	if attempts < 0 || attempts >= len(q.options.Backoff) {
		return 0, false
	}
	return q.options.Backoff[attempts], true
}

func (q *RetryQueue[T, U]) attemptAndUpdate(ctx context.Context, id uint64, item retryItem[T]) (U, error) {
	res, err := q.retryHandler(ctx, item.Item)
	if err == nil {
		if removeErr := q.queue.Remove(id); removeErr != nil {
			q.logger.Error("error removing succeeded item", "id", id, "err", removeErr)
		}
		return res, nil
	}

	item.LastAttempt = time.Now().UTC()
	item.Attempts++

	if item.Attempts < len(q.options.Backoff) {
		if updateErr := q.queue.Update(id, item); updateErr != nil {
			q.logger.Error("error updating retry item", "id", id, "err", updateErr)
		}
	} else {
		q.logger.Warn("retry attempts exhausted", "id", id)
		if removeErr := q.queue.Remove(id); removeErr != nil {
			q.logger.Error("error removing exhausted item", "id", id, "err", removeErr)
		}
	}

	var zero U
	return zero, err
}

// Len returns the number of items currently queued for retry.
func (q *RetryQueue[T, U]) Len() (int, error) {
	return q.queue.Len()
}
