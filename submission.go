package oneclick

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind identifies a submission lifecycle event.
type EventKind uint8

const (
	// EventSubmitted fires once the transaction hash is known.
	EventSubmitted EventKind = iota + 1

	// EventConfirmed fires once a successful receipt is available.
	EventConfirmed

	// EventFailed fires when the submission ends with an error.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSubmitted:
		return "submitted"
	case EventConfirmed:
		return "confirmed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered on Submission.Events.
type Event struct {
	Kind    EventKind
	TxHash  common.Hash
	Receipt *types.Receipt
	Err     error
}

// Submission tracks one batch transaction from signing to receipt.
type Submission struct {
	batch     *Batch
	submitted chan struct{}
	done      chan struct{}
	events    chan Event

	hash    common.Hash
	receipt *types.Receipt
	err     error
}

func newSubmission(batch *Batch) *Submission {
	return &Submission{
		batch:     batch,
		submitted: make(chan struct{}),
		done:      make(chan struct{}),
		events:    make(chan Event, 2),
	}
}

// Batch returns the batch being submitted.
func (s *Submission) Batch() *Batch {
	return s.batch
}

// Submitted is closed once the transaction hash is known.
func (s *Submission) Submitted() <-chan struct{} {
	return s.submitted
}

// Done is closed once the submission is confirmed or has failed.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Events delivers at most two events (submitted, then confirmed or failed)
// and is closed after the last one. It is buffered, so it may be ignored.
func (s *Submission) Events() <-chan Event {
	return s.events
}

// Hash waits for the transaction hash. It returns the submission error if
// the transaction was never broadcast.
func (s *Submission) Hash(ctx context.Context) (common.Hash, error) {
	select {
	case <-s.submitted:
		return s.hash, nil
	case <-s.done:
		select {
		case <-s.submitted:
			return s.hash, nil
		default:
			return common.Hash{}, s.err
		}
	case <-ctx.Done():
		return common.Hash{}, ctx.Err()
	}
}

// Wait blocks until the batch is confirmed or fails.
func (s *Submission) Wait(ctx context.Context) (*types.Receipt, error) {
	select {
	case <-s.done:
		return s.receipt, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the terminal error, or nil while pending or after success.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Submission) markSubmitted(hash common.Hash) {
	s.hash = hash
	close(s.submitted)
	s.events <- Event{Kind: EventSubmitted, TxHash: hash}
}

func (s *Submission) finish(receipt *types.Receipt, err error) {
	s.receipt = receipt
	s.err = err
	if err != nil {
		s.events <- Event{Kind: EventFailed, TxHash: s.hash, Receipt: receipt, Err: err}
	} else {
		s.events <- Event{Kind: EventConfirmed, TxHash: s.hash, Receipt: receipt}
	}
	close(s.events)
	close(s.done)
}

// classify maps provider errors onto the submission error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrSubmissionRejected),
		errors.Is(err, ErrRevert),
		errors.Is(err, ErrNetwork):
		return err
	default:
		return networkError(err)
	}
}
