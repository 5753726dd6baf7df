package oneclick

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/branched-services/go-oneclick/abis"
)

func multicallABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abis.Get(abis.Multicall)
	if err != nil {
		t.Fatalf("load multicall descriptor: %v", err)
	}
	return *parsed
}

func TestBuilderAdd(t *testing.T) {
	b := NewBuilder()
	if b.Len() != 0 {
		t.Errorf("Expected empty builder, got %d calls", b.Len())
	}

	first := NewCall(common.HexToAddress("0x01"), []byte{1})
	second := NewCall(common.HexToAddress("0x02"), []byte{2})

	if idx := b.Add(first); idx != 0 {
		t.Errorf("Expected index 0, got %d", idx)
	}
	if idx := b.Add(second); idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}
	if b.CallAt(1) != second {
		t.Error("CallAt(1) returned the wrong call")
	}
	if b.CallAt(-1) != nil || b.CallAt(2) != nil {
		t.Error("CallAt out of range should return nil")
	}
}

func TestPlan(t *testing.T) {
	aggregator := NewContract(abis.Multicall, testAccount, multicallABI(t))

	t.Run("empty batch", func(t *testing.T) {
		_, err := NewBuilder().Plan(aggregator)
		if !errors.Is(err, ErrEmptyBatch) {
			t.Errorf("Expected ErrEmptyBatch, got %v", err)
		}
	})

	t.Run("too many calls", func(t *testing.T) {
		b := NewBuilder()
		for i := 0; i < 3; i++ {
			b.Add(NewCall(testWETH, nil))
		}
		_, err := b.Plan(aggregator, WithMaxCalls(2))
		if !errors.Is(err, ErrTooManyCalls) {
			t.Errorf("Expected ErrTooManyCalls, got %v", err)
		}
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		b := NewBuilder()
		for i := 0; i < DefaultMaxCalls+1; i++ {
			b.Add(NewCall(testWETH, nil))
		}
		if _, err := b.Plan(aggregator, WithMaxCalls(0)); err != nil {
			t.Errorf("Plan failed: %v", err)
		}
	})

	t.Run("negative value", func(t *testing.T) {
		b := NewBuilder()
		b.Add(NewCall(testWETH, nil).WithValue(big.NewInt(-1)))
		_, err := b.Plan(aggregator)
		if !errors.Is(err, ErrNegativeValue) {
			t.Errorf("Expected ErrNegativeValue, got %v", err)
		}
	})

	t.Run("value is the sum of call values", func(t *testing.T) {
		b := NewBuilder()
		b.Add(NewCall(testWETH, nil).WithValue(big.NewInt(40)))
		b.Add(NewCall(testRouter, nil))
		b.Add(NewCall(testGHO, nil).WithValue(big.NewInt(2)))

		batch, err := b.Plan(aggregator)
		if err != nil {
			t.Fatal(err)
		}
		if batch.Value().Int64() != 42 {
			t.Errorf("Expected value 42, got %s", batch.Value())
		}
		if batch.Aggregator() != testAccount {
			t.Errorf("Expected aggregator %s, got %s", testAccount.Hex(), batch.Aggregator().Hex())
		}
		if batch.Len() != 3 {
			t.Errorf("Expected 3 calls, got %d", batch.Len())
		}
	})

	t.Run("calldata starts with aggregate3Value selector", func(t *testing.T) {
		b := NewBuilder()
		b.Add(NewCall(testWETH, []byte{0xd0, 0xe3, 0x0d, 0xb0}))
		batch, err := b.Plan(aggregator)
		if err != nil {
			t.Fatal(err)
		}
		want := selector("aggregate3Value((address,bool,uint256,bytes)[])")
		if !bytes.Equal(batch.Calldata()[:4], want) {
			t.Errorf("Expected selector %x, got %x", want, batch.Calldata()[:4])
		}
	})

	t.Run("batch ids", func(t *testing.T) {
		b := NewBuilder()
		b.Add(NewCall(testWETH, nil))

		first, _ := b.Plan(aggregator)
		second, _ := b.Plan(aggregator)
		if first.ID() == uuid.Nil || first.ID() == second.ID() {
			t.Error("Expected distinct generated batch ids")
		}

		fixed := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		third, _ := b.Plan(aggregator, WithBatchID(fixed))
		if third.ID() != fixed {
			t.Errorf("Expected id %s, got %s", fixed, third.ID())
		}
	})

	t.Run("later adds do not change a planned batch", func(t *testing.T) {
		b := NewBuilder()
		b.Add(NewCall(testWETH, nil))
		batch, err := b.Plan(aggregator)
		if err != nil {
			t.Fatal(err)
		}
		b.Add(NewCall(testRouter, nil))
		if batch.Len() != 1 {
			t.Errorf("Expected 1 call, got %d", batch.Len())
		}
	})
}

func TestDecodeBatch(t *testing.T) {
	parsed := multicallABI(t)
	aggregator := NewContract(abis.Multicall, testAccount, parsed)

	b := NewBuilder()
	b.Add(NewCall(testWETH, []byte{0xd0, 0xe3, 0x0d, 0xb0}).WithValue(big.NewInt(1000)))
	b.Add(NewCall(testWETH, []byte{0x09, 0x5e, 0xa7, 0xb3, 0x01}))
	b.Add(NewCall(testRouter, []byte{0x04, 0xe4, 0x5a, 0xaf}).WithAllowFailure(true))

	batch, err := b.Plan(aggregator)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("round trip", func(t *testing.T) {
		decoded, err := DecodeBatch(parsed, batch.Calldata())
		if err != nil {
			t.Fatalf("DecodeBatch failed: %v", err)
		}
		calls := batch.Calls()
		if len(decoded) != len(calls) {
			t.Fatalf("Expected %d calls, got %d", len(calls), len(decoded))
		}
		for i := range calls {
			if decoded[i].Target() != calls[i].Target() {
				t.Errorf("call %d: expected target %s, got %s", i, calls[i].Target().Hex(), decoded[i].Target().Hex())
			}
			if decoded[i].Value().Cmp(calls[i].Value()) != 0 {
				t.Errorf("call %d: expected value %s, got %s", i, calls[i].Value(), decoded[i].Value())
			}
			if decoded[i].AllowFailure() != calls[i].AllowFailure() {
				t.Errorf("call %d: allowFailure mismatch", i)
			}
			if !bytes.Equal(decoded[i].CallData(), calls[i].CallData()) {
				t.Errorf("call %d: expected calldata %x, got %x", i, calls[i].CallData(), decoded[i].CallData())
			}
		}
	})

	t.Run("wrong selector", func(t *testing.T) {
		data := batch.Calldata()
		data[0] ^= 0xff
		if _, err := DecodeBatch(parsed, data); !errors.Is(err, ErrNotBatch) {
			t.Errorf("Expected ErrNotBatch, got %v", err)
		}
	})

	t.Run("short data", func(t *testing.T) {
		if _, err := DecodeBatch(parsed, []byte{1, 2}); !errors.Is(err, ErrNotBatch) {
			t.Errorf("Expected ErrNotBatch, got %v", err)
		}
	})

	t.Run("truncated arguments", func(t *testing.T) {
		data := batch.Calldata()[:40]
		if _, err := DecodeBatch(parsed, data); !errors.Is(err, ErrNotBatch) {
			t.Errorf("Expected ErrNotBatch, got %v", err)
		}
	})

	t.Run("aggregate3Value with another shape", func(t *testing.T) {
		other := MustParseABI(`[{
			"name": "aggregate3Value",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "calls", "type": "tuple[]", "components": [
				{"name": "target", "type": "address"},
				{"name": "value", "type": "uint256"}
			]}],
			"outputs": []
		}]`)
		data, err := other.Pack(AggregateMethod, []struct {
			Target common.Address
			Value  *big.Int
		}{{testWETH, big.NewInt(1)}})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DecodeBatch(other, data); !errors.Is(err, ErrNotBatch) {
			t.Errorf("Expected ErrNotBatch, got %v", err)
		}
	})

	t.Run("component names differ", func(t *testing.T) {
		renamed := MustParseABI(`[{
			"name": "aggregate3Value",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "calls", "type": "tuple[]", "components": [
				{"name": "to", "type": "address"},
				{"name": "mayFail", "type": "bool"},
				{"name": "amount", "type": "uint256"},
				{"name": "data", "type": "bytes"}
			]}],
			"outputs": [{"name": "", "type": "tuple[]", "components": [
				{"name": "success", "type": "bool"},
				{"name": "returnData", "type": "bytes"}
			]}]
		}]`)
		decoded, err := DecodeBatch(renamed, batch.Calldata())
		if err != nil {
			t.Fatalf("DecodeBatch failed: %v", err)
		}
		if len(decoded) != batch.Len() || decoded[0].Value().Int64() != 1000 || !decoded[2].AllowFailure() {
			t.Errorf("Unexpected decode with renamed components: %d calls", len(decoded))
		}
	})

	t.Run("descriptor without aggregate3Value", func(t *testing.T) {
		_, err := DecodeBatch(MustParseABI(testTokenABI), batch.Calldata())
		var notFound *MethodNotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("Expected MethodNotFoundError, got %v", err)
		}
	})
}
