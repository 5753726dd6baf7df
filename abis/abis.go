// Package abis embeds the interface descriptors of the contracts a swap batch
// talks to: the Multicall3 aggregator, the Uniswap V3 SwapRouter02 and WETH9.
// They are used when no external descriptor location is configured.
package abis

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Descriptor names, also the embedded file names without extension.
const (
	Multicall    = "Multicall"
	SwapRouter02 = "SwapRouter02"
	WETH         = "WETH"
)

//go:embed *.json
var FS embed.FS

// Raw returns the embedded JSON descriptor.
func Raw(name string) ([]byte, error) {
	data, err := FS.ReadFile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("no embedded descriptor %q: %w", name, err)
	}
	return data, nil
}

// Get parses the embedded descriptor.
func Get(name string) (*abi.ABI, error) {
	data, err := Raw(name)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse embedded descriptor %q: %w", name, err)
	}
	return &parsed, nil
}
