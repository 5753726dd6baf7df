package oneclick

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract binds an interface descriptor to a fixed address.
type Contract struct {
	name    string
	address common.Address
	abi     abi.ABI
}

// NewContract creates a Contract handle. The name is only used in errors and logs.
func NewContract(name string, address common.Address, contractABI abi.ABI) *Contract {
	return &Contract{
		name:    name,
		address: address,
		abi:     contractABI,
	}
}

// Name returns the descriptor name the contract was bound with.
func (c *Contract) Name() string {
	return c.name
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Pack encodes an invocation of the named method.
func (c *Contract) Pack(methodName string, args ...any) ([]byte, error) {
	if _, ok := c.abi.Methods[methodName]; !ok {
		return nil, &MethodNotFoundError{Contract: c.address, Method: methodName}
	}
	data, err := c.abi.Pack(methodName, args...)
	if err != nil {
		return nil, &EncodingError{Method: methodName, Err: err}
	}
	return data, nil
}

// Invoke encodes the named method as a Call targeting this contract.
// The call carries no value and does not tolerate failure.
func (c *Contract) Invoke(methodName string, args ...any) (*Call, error) {
	data, err := c.Pack(methodName, args...)
	if err != nil {
		return nil, err
	}
	return NewCall(c.address, data), nil
}

// InvokeWithValue is like Invoke but attaches native currency to the call.
func (c *Contract) InvokeWithValue(value *big.Int, methodName string, args ...any) (*Call, error) {
	call, err := c.Invoke(methodName, args...)
	if err != nil {
		return nil, err
	}
	return call.WithValue(value), nil
}

// HasMethod returns true if the contract has a method with the given name.
func (c *Contract) HasMethod(methodName string) bool {
	_, ok := c.abi.Methods[methodName]
	return ok
}

// MethodNames returns all method names in the contract ABI, sorted.
func (c *Contract) MethodNames() []string {
	names := make([]string, 0, len(c.abi.Methods))
	for name := range c.abi.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// At returns a handle for the same interface bound to another address.
func (c *Contract) At(address common.Address) *Contract {
	return &Contract{name: c.name, address: address, abi: c.abi}
}

// ParseABI parses a JSON ABI string into an abi.ABI.
func ParseABI(abiJSON string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// MustParseABI is like ParseABI but panics on error.
func MustParseABI(abiJSON string) abi.ABI {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return parsed
}
