package oneclick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultFeeTier selects the 0.3% pool.
const DefaultFeeTier = 3000

// Method names of the three batched calls.
const (
	MethodWrap    = "deposit"
	MethodApprove = "approve"
	MethodSwap    = "exactInputSingle"
)

// SwapParams are the fixed parameters of the swap step.
type SwapParams struct {
	DestinationToken  common.Address
	FeeTier           uint32
	Decimals          uint8
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// exactInputSingleParams mirrors IV3SwapRouter.ExactInputSingleParams.
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// SwapBuilder turns an input amount into a wrap, approve and swap batch
// sent to the connected account's own multicall entry point. It only reads
// the Session it is given.
type SwapBuilder struct {
	params   SwapParams
	planOpts []PlanOption
	logger   *slog.Logger
	sink     Sink
}

// NewSwapBuilder creates a builder swapping the wrapped token into destination.
// The swap accepts any output amount unless WithAmountOutMinimum is given.
func NewSwapBuilder(destination common.Address, opts ...SwapOption) *SwapBuilder {
	b := &SwapBuilder{
		params: SwapParams{
			DestinationToken:  destination,
			FeeTier:           DefaultFeeTier,
			Decimals:          WrappedTokenDecimals,
			AmountOutMinimum:  new(big.Int),
			SqrtPriceLimitX96: new(big.Int),
		},
		logger: slog.New(slog.DiscardHandler),
		sink:   discardSink,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Params returns a copy of the swap parameters.
func (b *SwapBuilder) Params() SwapParams {
	p := b.params
	p.AmountOutMinimum = new(big.Int).Set(b.params.AmountOutMinimum)
	p.SqrtPriceLimitX96 = new(big.Int).Set(b.params.SqrtPriceLimitX96)
	return p
}

// Build encodes the three calls for amount without touching the network:
// wrap the amount, approve the router for it, then swap it exact-input
// through a single pool to the session account. No call tolerates failure.
// A session invalidated by a reset yields ErrSessionReset.
func (b *SwapBuilder) Build(session *Session, amount string) (*Batch, error) {
	if session == nil {
		return nil, ErrNotReady
	}
	if err := session.Err(); err != nil {
		return nil, err
	}

	wei, err := ParseAmount(amount, b.params.Decimals)
	if err != nil {
		return nil, err
	}

	wrapped := session.WrappedToken()
	router := session.Router()

	wrap, err := wrapped.InvokeWithValue(wei, MethodWrap)
	if err != nil {
		return nil, err
	}
	approve, err := wrapped.Invoke(MethodApprove, router.Address(), wei)
	if err != nil {
		return nil, err
	}
	swap, err := router.Invoke(MethodSwap, exactInputSingleParams{
		TokenIn:           wrapped.Address(),
		TokenOut:          b.params.DestinationToken,
		Fee:               new(big.Int).SetUint64(uint64(b.params.FeeTier)),
		Recipient:         session.Account(),
		AmountIn:          wei,
		AmountOutMinimum:  b.params.AmountOutMinimum,
		SqrtPriceLimitX96: b.params.SqrtPriceLimitX96,
	})
	if err != nil {
		return nil, err
	}

	builder := NewBuilder()
	builder.Add(wrap)
	builder.Add(approve)
	builder.Add(swap)

	batch, err := builder.Plan(session.Self(), b.planOpts...)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("batch built",
		"batch", batch.ID(),
		"amount", FormatAmount(wei, b.params.Decimals),
		"wei", wei,
		"calls", batch.Len(),
	)
	return batch, nil
}

// Submit sends batch as one transaction from the session account to its own
// address, carrying the batch value. It returns immediately; the outcome is
// observed through the Submission. Failures are never retried. A session
// invalidated before the transaction is sent fails with ErrSessionReset.
func (b *SwapBuilder) Submit(ctx context.Context, session *Session, batch *Batch) (*Submission, error) {
	if session == nil {
		return nil, ErrNotReady
	}
	if err := session.Err(); err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrEmptyBatch
	}
	if batch.Aggregator() != session.Account() {
		return nil, fmt.Errorf("oneclick: batch targets %s, session account is %s",
			batch.Aggregator().Hex(), session.Account().Hex())
	}

	req := TxRequest{
		From:  session.Account(),
		To:    batch.Aggregator(),
		Value: batch.Value(),
		Data:  batch.Calldata(),
	}

	sub := newSubmission(batch)
	go b.run(ctx, session, req, sub)
	return sub, nil
}

// BuildSwapBatch builds the batch for amount and submits it.
func (b *SwapBuilder) BuildSwapBatch(ctx context.Context, session *Session, amount string) (*Submission, error) {
	batch, err := b.Build(session, amount)
	if err != nil {
		return nil, err
	}
	return b.Submit(ctx, session, batch)
}

func (b *SwapBuilder) run(ctx context.Context, session *Session, req TxRequest, sub *Submission) {
	id := sub.batch.ID()
	logger := b.logger.With("batch", id)
	provider := session.Provider()

	report(ctx, b.sink, logger, Status{Stage: StageSubmitting, BatchID: id, Message: "wrapping, approving and swapping"})

	// The session may have been reset between Submit and this point.
	if err := session.Err(); err != nil {
		b.fail(ctx, logger, sub, nil, err)
		return
	}

	hash, err := provider.SendTransaction(ctx, req)
	if err != nil {
		b.fail(ctx, logger, sub, nil, classify(err))
		return
	}
	sub.markSubmitted(hash)
	logger.Info("batch submitted", "tx", hash.Hex(), "value", req.Value)
	report(ctx, b.sink, logger, Status{Stage: StageSubmitted, BatchID: id, TxHash: hash, Message: "transaction sent"})

	receipt, err := provider.WaitReceipt(ctx, hash)
	if err != nil {
		var revert *RevertError
		if errors.As(err, &revert) && revert.TxHash == (common.Hash{}) {
			revert.TxHash = hash
		}
		b.fail(ctx, logger, sub, nil, classify(err))
		return
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		b.fail(ctx, logger, sub, receipt, &RevertError{TxHash: hash, Receipt: receipt})
		return
	}

	logger.Info("batch confirmed", "tx", hash.Hex(), "block", receipt.BlockNumber, "gas", receipt.GasUsed)
	report(ctx, b.sink, logger, Status{Stage: StageConfirmed, BatchID: id, TxHash: hash, Message: "wrap, approve and swap succeeded"})
	sub.finish(receipt, nil)
}

func (b *SwapBuilder) fail(ctx context.Context, logger *slog.Logger, sub *Submission, receipt *types.Receipt, err error) {
	logger.Warn("batch failed", "error", err)
	report(ctx, b.sink, logger, Status{
		Stage:   StageFailed,
		BatchID: sub.batch.ID(),
		TxHash:  sub.hash,
		Message: "wrap, approve and swap failed: " + err.Error(),
		Err:     err,
	})
	sub.finish(receipt, err)
}
