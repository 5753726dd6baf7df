package oneclick

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sentinel errors for common failure conditions. Every failure is terminal
// for the current attempt; nothing in this package retries.
var (
	// ErrProviderUnavailable indicates no wallet provider could be located.
	ErrProviderUnavailable = errors.New("oneclick: wallet provider unavailable")

	// ErrWrongNetwork indicates the provider is on a different chain than expected.
	ErrWrongNetwork = errors.New("oneclick: wrong network")

	// ErrAbiFetch indicates a contract interface descriptor could not be retrieved.
	ErrAbiFetch = errors.New("oneclick: interface descriptor unavailable")

	// ErrInvalidAmount indicates the amount is not a valid non-negative decimal.
	ErrInvalidAmount = errors.New("oneclick: invalid amount")

	// ErrSubmissionRejected indicates the user declined to sign the transaction.
	ErrSubmissionRejected = errors.New("oneclick: submission rejected by user")

	// ErrRevert indicates one or more calls of the batch reverted on-chain.
	ErrRevert = errors.New("oneclick: batch reverted")

	// ErrNetwork indicates the transaction could not be broadcast or tracked.
	ErrNetwork = errors.New("oneclick: network error")

	// ErrAccessDenied indicates the provider refused to expose any account.
	ErrAccessDenied = errors.New("oneclick: account access denied")

	// ErrNotReady indicates the session has not reached the ready state.
	ErrNotReady = errors.New("oneclick: session not ready")

	// ErrSessionReset indicates an account or network change invalidated the
	// session while an operation was in flight.
	ErrSessionReset = errors.New("oneclick: session reset")

	// ErrEmptyBatch indicates a batch was planned without any call.
	ErrEmptyBatch = errors.New("oneclick: batch has no calls")

	// ErrTooManyCalls indicates the batch exceeds the configured call limit.
	ErrTooManyCalls = errors.New("oneclick: too many calls in batch")

	// ErrNegativeValue indicates a call was given a negative native value.
	ErrNegativeValue = errors.New("oneclick: negative call value")

	// ErrNotBatch indicates calldata is not an aggregate3Value invocation.
	ErrNotBatch = errors.New("oneclick: calldata is not an aggregate3Value batch")
)

// WrongNetworkError reports the chain the provider is actually on.
type WrongNetworkError struct {
	Expected *big.Int
	Got      *big.Int
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("oneclick: wrong network: expected chain %s, got %s", e.Expected, e.Got)
}

func (e *WrongNetworkError) Unwrap() error {
	return ErrWrongNetwork
}

// AbiFetchError wraps a failure to load a named contract descriptor.
type AbiFetchError struct {
	Contract string
	Ref      string
	Err      error
}

func (e *AbiFetchError) Error() string {
	ref := e.Ref
	if ref == "" {
		ref = "embedded"
	}
	return fmt.Sprintf("oneclick: load %s descriptor from %s: %v", e.Contract, ref, e.Err)
}

// Unwrap exposes both ErrAbiFetch and the underlying cause.
func (e *AbiFetchError) Unwrap() []error {
	return []error{ErrAbiFetch, e.Err}
}

// AmountError indicates why an amount string was rejected.
type AmountError struct {
	Input  string
	Reason string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("oneclick: invalid amount %q: %s", e.Input, e.Reason)
}

func (e *AmountError) Unwrap() error {
	return ErrInvalidAmount
}

// RevertError indicates the batch reverted, either during submission or once mined.
// Receipt is nil when the revert was detected before broadcast.
type RevertError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
	Reason  string
}

func (e *RevertError) Error() string {
	switch {
	case e.Reason != "" && e.TxHash != (common.Hash{}):
		return fmt.Sprintf("oneclick: batch reverted in %s: %s", e.TxHash.Hex(), e.Reason)
	case e.Reason != "":
		return fmt.Sprintf("oneclick: batch reverted: %s", e.Reason)
	default:
		return fmt.Sprintf("oneclick: batch reverted in %s", e.TxHash.Hex())
	}
}

func (e *RevertError) Unwrap() error {
	return ErrRevert
}

// MethodNotFoundError indicates the contract doesn't have the requested method.
type MethodNotFoundError struct {
	Contract common.Address
	Method   string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("oneclick: method %q not found in contract %s", e.Method, e.Contract.Hex())
}

// EncodingError indicates a call could not be ABI-encoded.
type EncodingError struct {
	Method string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("oneclick: encode %s: %v", e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// networkError marks err as ErrNetwork while keeping the cause in the chain.
func networkError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
