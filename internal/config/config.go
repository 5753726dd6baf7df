// Package config loads the oneclick CLI configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	oneclick "github.com/branched-services/go-oneclick"
	"github.com/branched-services/go-oneclick/internal/logging"
)

// Scroll Sepolia deployment used by default.
const (
	ScrollSepoliaChainID = 534351
	ScrollSepoliaRPCURL  = "https://sepolia-rpc.scroll.io"
	SwapRouter02Address  = "0x17AFD0263D6909Ba1F9a8EAC697f76532365Fb95"
	WETHAddress          = "0x5300000000000000000000000000000000000004"
	GHOAddress           = "0xD9692f1748aFEe00FACE2da35242417dd05a8615"
)

// DefaultKeyEnv names the environment variable holding the signing key.
const DefaultKeyEnv = "ONECLICK_PRIVATE_KEY"

// Config is the full CLI configuration.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Contracts ContractsConfig `yaml:"contracts"`
	ABIs      ABIConfig       `yaml:"abis"`
	Swap      SwapConfig      `yaml:"swap"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Log       logging.Config  `yaml:"log"`
	Status    StatusConfig    `yaml:"status"`
}

// NetworkConfig identifies the chain to connect to.
type NetworkConfig struct {
	ChainID uint64 `yaml:"chain_id"`
	RPCURL  string `yaml:"rpc_url"`
}

// ContractsConfig holds the fixed contract addresses.
type ContractsConfig struct {
	Router           string `yaml:"router"`
	WrappedToken     string `yaml:"wrapped_token"`
	DestinationToken string `yaml:"destination_token"`
}

// ABIConfig holds descriptor references: URL, file path or empty for embedded.
type ABIConfig struct {
	Router       string `yaml:"router"`
	WrappedToken string `yaml:"wrapped_token"`
	Multicall    string `yaml:"multicall"`
}

// SwapConfig holds the swap step parameters.
type SwapConfig struct {
	FeeTier          uint32 `yaml:"fee_tier"`
	Decimals         uint8  `yaml:"decimals"`
	AmountOutMinimum string `yaml:"amount_out_minimum"`
}

// WalletConfig controls the RPC wallet provider.
type WalletConfig struct {
	// PrivateKeyEnv names the variable holding a hex key. When it is unset
	// the node's own accounts are used.
	PrivateKeyEnv  string        `yaml:"private_key_env"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReloadOnChange bool          `yaml:"reload_on_change"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`
}

// StatusConfig enables external status sinks. Empty sections are disabled.
type StatusConfig struct {
	Redis RedisConfig `yaml:"redis"`
	AMQP  AMQPConfig  `yaml:"amqp"`
}

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// AMQPConfig configures the RabbitMQ sink.
type AMQPConfig struct {
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
	Durable bool   `yaml:"durable"`
}

// Default returns the Scroll Sepolia configuration.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			ChainID: ScrollSepoliaChainID,
			RPCURL:  ScrollSepoliaRPCURL,
		},
		Contracts: ContractsConfig{
			Router:           SwapRouter02Address,
			WrappedToken:     WETHAddress,
			DestinationToken: GHOAddress,
		},
		Swap: SwapConfig{
			FeeTier:          oneclick.DefaultFeeTier,
			Decimals:         oneclick.WrappedTokenDecimals,
			AmountOutMinimum: "0",
		},
		Wallet: WalletConfig{
			PrivateKeyEnv:  DefaultKeyEnv,
			PollInterval:   2 * time.Second,
			ReceiptTimeout: 5 * time.Minute,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path and overlays it on Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(content)
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Network.ChainID == 0 {
		return errors.New("config: network.chain_id is required")
	}
	for name, addr := range map[string]string{
		"contracts.router":            c.Contracts.Router,
		"contracts.wrapped_token":     c.Contracts.WrappedToken,
		"contracts.destination_token": c.Contracts.DestinationToken,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s %q is not an address", name, addr)
		}
	}
	if c.Swap.FeeTier == 0 || c.Swap.FeeTier >= 1_000_000 {
		return fmt.Errorf("config: swap.fee_tier %d out of range", c.Swap.FeeTier)
	}
	if c.Swap.Decimals == 0 || c.Swap.Decimals > 77 {
		return fmt.Errorf("config: swap.decimals %d out of range", c.Swap.Decimals)
	}
	if _, err := c.AmountOutMinimum(); err != nil {
		return err
	}
	if c.Wallet.PollInterval < 0 || c.Wallet.ReceiptTimeout < 0 {
		return errors.New("config: wallet intervals must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ChainID returns the expected chain id.
func (c *Config) ChainID() *big.Int {
	return new(big.Int).SetUint64(c.Network.ChainID)
}

// DestinationToken returns the swap output token address.
func (c *Config) DestinationToken() common.Address {
	return common.HexToAddress(c.Contracts.DestinationToken)
}

// AmountOutMinimum parses swap.amount_out_minimum as an integer in
// destination token units. Empty means zero.
func (c *Config) AmountOutMinimum() (*big.Int, error) {
	s := strings.TrimSpace(c.Swap.AmountOutMinimum)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: swap.amount_out_minimum %q is not a non-negative integer", s)
	}
	return v, nil
}

// OneclickContracts maps the addresses and descriptor references for a Manager.
func (c *Config) OneclickContracts() oneclick.Contracts {
	return oneclick.Contracts{
		Router:          common.HexToAddress(c.Contracts.Router),
		WrappedToken:    common.HexToAddress(c.Contracts.WrappedToken),
		RouterABI:       c.ABIs.Router,
		WrappedTokenABI: c.ABIs.WrappedToken,
		MulticallABI:    c.ABIs.Multicall,
	}
}

// SwapOptions maps the swap section to builder options.
func (c *Config) SwapOptions() []oneclick.SwapOption {
	opts := []oneclick.SwapOption{
		oneclick.WithFeeTier(c.Swap.FeeTier),
		oneclick.WithDecimals(c.Swap.Decimals),
	}
	if min, err := c.AmountOutMinimum(); err == nil && min.Sign() > 0 {
		opts = append(opts, oneclick.WithAmountOutMinimum(min))
	}
	return opts
}
