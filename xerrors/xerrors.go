// Package xerrors collects the sentinel and structured error types shared
// across wineventchain's packages, following the plain errors.New /
// fmt.Errorf("%w") idiom used elsewhere in this codebase rather than a
// bespoke error-code enum.
package xerrors

import (
	"errors"
	"fmt"
)

// verifyingclient errors.
var (
	ErrNoClientsAvailable = errors.New("xerrors: no clients available")
	ErrVerificationFailed = errors.New("xerrors: verification failed")
)

// NotEnoughClientsError is returned when fewer healthy peers are available
// than the configured verification threshold requires.
type NotEnoughClientsError struct {
	Have int
	Need int
}

func (e *NotEnoughClientsError) Error() string {
	return fmt.Sprintf("xerrors: not enough clients available: have %d, need %d", e.Have, e.Need)
}

// retryqueue errors.
var ErrRetryQueueAlreadyStarted = errors.New("xerrors: retry queue already started")

// blockchain errors.

// BlockchainError wraps a non-zero response code returned by a chain node,
// mirroring the codespace/code/log triple carried on ABCI-style responses.
type BlockchainError struct {
	Codespace string
	Code      uint32
	Log       string
}

func (e *BlockchainError) Error() string {
	return fmt.Sprintf("xerrors: blockchain error [%s:%d]: %s", e.Codespace, e.Code, e.Log)
}

var ErrBlockchainEventNotFound = errors.New("xerrors: event not found on chain")

// offchain errors.

// OffChainStatusError is returned when a peer's /status endpoint reports
// itself unhealthy.
type OffChainStatusError struct {
	Status string
}

func (e *OffChainStatusError) Error() string {
	return fmt.Sprintf("xerrors: off-chain peer unhealthy: %s", e.Status)
}

// OffChainResponseError is returned when a peer returns a non-2xx HTTP
// status for a request (except a 404 on an event fetch, which is reported
// as not found).
type OffChainResponseError struct {
	StatusCode int
	Body       string
}

func (e *OffChainResponseError) Error() string {
	return fmt.Sprintf("xerrors: off-chain peer returned status %d: %s", e.StatusCode, e.Body)
}

// OffChainHashMismatchError is returned when a stored event's re-derived
// hash does not match the hash bound on-chain.
type OffChainHashMismatchError struct {
	Expected string
	Got      string
}

func (e *OffChainHashMismatchError) Error() string {
	return fmt.Sprintf("xerrors: off-chain hash mismatch: expected %s, got %s", e.Expected, e.Got)
}

// model/events errors.
var ErrInvalidVariant = errors.New("xerrors: invalid enum variant")

// Transient reports whether err represents a condition the caller should
// retry rather than treat as permanent. BlockchainError and
// OffChainResponseError are treated as permanent (the peer understood the
// request and rejected it); everything else that reaches the retry queue is
// treated as transient.
func Transient(err error) bool {
	var be *BlockchainError
	if errors.As(err, &be) {
		return false
	}
	var ore *OffChainResponseError
	if errors.As(err, &ore) {
		return false
	}
	return true
}
