package oneclick

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call is one entry of a Multicall3 aggregate3Value batch.
// Call is immutable - modifier methods return new instances.
type Call struct {
	target       common.Address
	allowFailure bool
	value        *big.Int
	callData     []byte
}

// NewCall creates a Call with zero value that does not tolerate failure.
func NewCall(target common.Address, callData []byte) *Call {
	return &Call{
		target:   target,
		value:    new(big.Int),
		callData: common.CopyBytes(callData),
	}
}

// Target returns the address the call is made against.
func (c *Call) Target() common.Address {
	return c.target
}

// AllowFailure reports whether the aggregator tolerates this call reverting.
func (c *Call) AllowFailure() bool {
	return c.allowFailure
}

// Value returns a copy of the native currency attached to the call.
func (c *Call) Value() *big.Int {
	return new(big.Int).Set(c.value)
}

// CallData returns a copy of the encoded invocation.
func (c *Call) CallData() []byte {
	return common.CopyBytes(c.callData)
}

// Selector returns the 4-byte function selector, or zero if the calldata is shorter.
func (c *Call) Selector() [4]byte {
	var sel [4]byte
	if len(c.callData) >= 4 {
		copy(sel[:], c.callData[:4])
	}
	return sel
}

// WithValue attaches native currency to the call.
//
// Returns a new Call with the value set. A nil amount means zero.
func (c *Call) WithValue(amount *big.Int) *Call {
	clone := c.clone()
	clone.value = new(big.Int)
	if amount != nil {
		clone.value.Set(amount)
	}
	return clone
}

// WithAllowFailure sets whether the aggregator may skip this call on revert.
//
// Returns a new Call with the flag set.
func (c *Call) WithAllowFailure(allow bool) *Call {
	clone := c.clone()
	clone.allowFailure = allow
	return clone
}

// clone creates a deep copy of the Call.
func (c *Call) clone() *Call {
	return &Call{
		target:       c.target,
		allowFailure: c.allowFailure,
		value:        new(big.Int).Set(c.value),
		callData:     common.CopyBytes(c.callData),
	}
}

// tuple returns the ABI representation of the call for aggregate3Value.
func (c *Call) tuple() call3Value {
	return call3Value{
		Target:       c.target,
		AllowFailure: c.allowFailure,
		Value:        new(big.Int).Set(c.value),
		CallData:     common.CopyBytes(c.callData),
	}
}

// call3Value mirrors Multicall3.Call3Value. Field names must match the ABI
// component names in camel case.
type call3Value struct {
	Target       common.Address
	AllowFailure bool
	Value        *big.Int
	CallData     []byte
}
