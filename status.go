package oneclick

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Stage identifies a lifecycle transition reported on the status channel.
type Stage string

const (
	StageConnecting          Stage = "connecting"
	StageProviderUnavailable Stage = "provider-unavailable"
	StageWrongNetwork        Stage = "wrong-network"
	StageAbiError            Stage = "abi-error"
	StageAwaitingConnect     Stage = "awaiting-connect"
	StageConnected           Stage = "connected"
	StageReset               Stage = "reset"
	StageSubmitting          Stage = "submitting"
	StageSubmitted           Stage = "submitted"
	StageConfirmed           Stage = "confirmed"
	StageFailed              Stage = "failed"
)

// Status is one human-readable update for the user-facing status surface.
type Status struct {
	Stage   Stage
	Message string
	BatchID uuid.UUID
	TxHash  common.Hash
	Err     error
	Time    time.Time
}

// statusJSON is the wire form of a Status published to external sinks.
type statusJSON struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	BatchID string    `json:"batch_id,omitempty"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// MarshalJSON encodes the status with the error flattened to its message.
func (s Status) MarshalJSON() ([]byte, error) {
	out := statusJSON{
		Stage:   s.Stage,
		Message: s.Message,
		Time:    s.Time,
	}
	if s.BatchID != uuid.Nil {
		out.BatchID = s.BatchID.String()
	}
	if s.TxHash != (common.Hash{}) {
		out.TxHash = s.TxHash.Hex()
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// Sink receives status updates. Implementations must not block for long;
// a returned error is logged and otherwise ignored.
type Sink interface {
	Publish(ctx context.Context, s Status) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, s Status) error

// Publish calls f(ctx, s).
func (f SinkFunc) Publish(ctx context.Context, s Status) error {
	return f(ctx, s)
}

// MultiSink fans a status out to every sink, joining their errors.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, s Status) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Publish(ctx, s); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogSink writes each status as a structured log record.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, s Status) error {
		attrs := []any{slog.String("stage", string(s.Stage))}
		if s.BatchID != uuid.Nil {
			attrs = append(attrs, slog.String("batch", s.BatchID.String()))
		}
		if s.TxHash != (common.Hash{}) {
			attrs = append(attrs, slog.String("tx", s.TxHash.Hex()))
		}
		level := slog.LevelInfo
		if s.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", s.Err))
		}
		logger.Log(ctx, level, s.Message, attrs...)
		return nil
	})
}

// discardSink drops every status.
var discardSink = SinkFunc(func(context.Context, Status) error { return nil })

// report stamps and publishes s, logging sink failures.
func report(ctx context.Context, sink Sink, logger *slog.Logger, s Status) {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	if err := sink.Publish(ctx, s); err != nil {
		logger.Warn("status sink failed", "stage", s.Stage, "error", err)
	}
}
