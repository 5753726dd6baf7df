package oneclick

import (
	"log/slog"
	"math/big"

	"github.com/google/uuid"
)

// DefaultMaxCalls is the default call limit for a planned batch.
const DefaultMaxCalls = 256

// PlanOption configures the Plan() operation.
type PlanOption func(*planConfig)

// planConfig holds configuration for the Plan() method.
type planConfig struct {
	maxCalls int
	id       uuid.UUID
}

// defaultPlanConfig returns the default plan configuration.
func defaultPlanConfig() *planConfig {
	return &planConfig{
		maxCalls: DefaultMaxCalls,
	}
}

// WithMaxCalls sets a maximum call limit for the batch.
// Default is 256 calls.
func WithMaxCalls(max int) PlanOption {
	return func(c *planConfig) {
		c.maxCalls = max
	}
}

// WithBatchID fixes the batch identifier instead of generating a random one.
func WithBatchID(id uuid.UUID) PlanOption {
	return func(c *planConfig) {
		c.id = id
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used by the manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerSink sets where the manager reports lifecycle transitions.
func WithManagerSink(sink Sink) ManagerOption {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithReloadOnChange makes the manager reconnect on its own after an account
// or network change reset, using the last expected chain id. This mirrors a
// page reload re-running the connect flow. Disabled by default.
func WithReloadOnChange(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.reloadOnChange = enabled
	}
}

// SwapOption configures a SwapBuilder.
type SwapOption func(*SwapBuilder)

// WithSwapLogger sets the logger used by the builder.
func WithSwapLogger(logger *slog.Logger) SwapOption {
	return func(b *SwapBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSwapSink sets where the builder reports submission lifecycle events.
func WithSwapSink(sink Sink) SwapOption {
	return func(b *SwapBuilder) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// WithFeeTier selects the pool fee tier in hundredths of a basis point.
// Default is 3000 (0.3%).
func WithFeeTier(fee uint32) SwapOption {
	return func(b *SwapBuilder) {
		b.params.FeeTier = fee
	}
}

// WithAmountOutMinimum sets the minimum swap output in destination token
// units. The default of zero accepts any output.
func WithAmountOutMinimum(min *big.Int) SwapOption {
	return func(b *SwapBuilder) {
		if min != nil {
			b.params.AmountOutMinimum = new(big.Int).Set(min)
		}
	}
}

// WithSqrtPriceLimit sets the swap price limit. Zero means no limit.
func WithSqrtPriceLimit(limit *big.Int) SwapOption {
	return func(b *SwapBuilder) {
		if limit != nil {
			b.params.SqrtPriceLimitX96 = new(big.Int).Set(limit)
		}
	}
}

// WithDecimals overrides the wrapped token precision used to parse amounts.
func WithDecimals(decimals uint8) SwapOption {
	return func(b *SwapBuilder) {
		b.params.Decimals = decimals
	}
}

// WithPlanOptions passes options through to every Plan() call the builder makes.
func WithPlanOptions(opts ...PlanOption) SwapOption {
	return func(b *SwapBuilder) {
		b.planOpts = append(b.planOpts, opts...)
	}
}
