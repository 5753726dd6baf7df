package oneclick

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AggregateMethod is the Multicall3 entry point used to submit batches.
const AggregateMethod = "aggregate3Value"

// Builder accumulates calls in submission order.
type Builder struct {
	calls []*Call
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		calls: make([]*Call, 0, 4),
	}
}

// Add appends a call and returns its position in the batch.
func (b *Builder) Add(call *Call) int {
	b.calls = append(b.calls, call)
	return len(b.calls) - 1
}

// Len returns the number of calls added so far.
func (b *Builder) Len() int {
	return len(b.calls)
}

// CallAt returns the call at the given index.
func (b *Builder) CallAt(i int) *Call {
	if i < 0 || i >= len(b.calls) {
		return nil
	}
	return b.calls[i]
}

// Plan encodes the calls as a single aggregate3Value invocation of the
// aggregator contract. The attached value is the sum of the call values.
func (b *Builder) Plan(aggregator *Contract, opts ...PlanOption) (*Batch, error) {
	cfg := defaultPlanConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(b.calls) == 0 {
		return nil, ErrEmptyBatch
	}
	if cfg.maxCalls > 0 && len(b.calls) > cfg.maxCalls {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCalls, len(b.calls), cfg.maxCalls)
	}

	total := new(big.Int)
	tuples := make([]call3Value, len(b.calls))
	calls := make([]*Call, len(b.calls))
	for i, call := range b.calls {
		if call.value.Sign() < 0 {
			return nil, fmt.Errorf("%w: call %d", ErrNegativeValue, i)
		}
		total.Add(total, call.value)
		tuples[i] = call.tuple()
		calls[i] = call
	}

	data, err := aggregator.Pack(AggregateMethod, tuples)
	if err != nil {
		return nil, err
	}

	id := cfg.id
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Batch{
		id:         id,
		aggregator: aggregator.Address(),
		calls:      calls,
		value:      total,
		calldata:   data,
	}, nil
}

// Batch is an ordered set of calls encoded as one transaction payload.
type Batch struct {
	id         uuid.UUID
	aggregator common.Address
	calls      []*Call
	value      *big.Int
	calldata   []byte
}

// ID returns the batch identifier used in logs and status events.
func (b *Batch) ID() uuid.UUID {
	return b.id
}

// Aggregator returns the address the batch must be sent to.
func (b *Batch) Aggregator() common.Address {
	return b.aggregator
}

// Calls returns the calls in submission order.
func (b *Batch) Calls() []*Call {
	out := make([]*Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Len returns the number of calls in the batch.
func (b *Batch) Len() int {
	return len(b.calls)
}

// Value returns the native currency the transaction must carry.
func (b *Batch) Value() *big.Int {
	return new(big.Int).Set(b.value)
}

// Calldata returns the encoded aggregate3Value invocation.
func (b *Batch) Calldata() []byte {
	return common.CopyBytes(b.calldata)
}

// DecodeBatch recovers the calls from aggregate3Value calldata.
func DecodeBatch(aggregatorABI abi.ABI, data []byte) ([]*Call, error) {
	method, ok := aggregatorABI.Methods[AggregateMethod]
	if !ok {
		return nil, &MethodNotFoundError{Method: AggregateMethod}
	}
	if !isCall3ValueArray(method.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %s", ErrNotBatch, AggregateMethod, method.Sig)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, ErrNotBatch
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotBatch, err)
	}
	if len(values) != 1 {
		return nil, ErrNotBatch
	}
	// Fields are read by position: component names may differ between
	// descriptors of the same shape.
	tuples := reflect.ValueOf(values[0])
	calls := make([]*Call, tuples.Len())
	for i := range calls {
		t := tuples.Index(i)
		calls[i] = NewCall(t.Field(0).Interface().(common.Address), t.Field(3).Interface().([]byte)).
			WithValue(t.Field(2).Interface().(*big.Int)).
			WithAllowFailure(t.Field(1).Bool())
	}
	return calls, nil
}

// isCall3ValueArray reports whether args is a single (address,bool,uint256,bytes)[].
func isCall3ValueArray(args abi.Arguments) bool {
	if len(args) != 1 {
		return false
	}
	typ := args[0].Type
	if typ.T != abi.SliceTy || typ.Elem == nil || typ.Elem.T != abi.TupleTy {
		return false
	}
	elems := typ.Elem.TupleElems
	return len(elems) == 4 &&
		elems[0].T == abi.AddressTy &&
		elems[1].T == abi.BoolTy &&
		elems[2].T == abi.UintTy && elems[2].Size == 256 &&
		elems[3].T == abi.BytesTy
}
