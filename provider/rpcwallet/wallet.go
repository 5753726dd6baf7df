// Package rpcwallet implements oneclick.Provider on top of a JSON-RPC node.
//
// A Wallet either signs locally with an ECDSA key, which works against any
// public endpoint, or delegates accounts and signing to the node through
// eth_accounts, eth_requestAccounts and eth_sendTransaction, which suits dev
// chains with unlocked accounts. Account and network changes are detected by
// polling and published on go-ethereum event feeds.
package rpcwallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	oneclick "github.com/branched-services/go-oneclick"
)

// DefaultPollInterval is how often chain id, accounts and receipts are polled.
const DefaultPollInterval = 2 * time.Second

// Backend is the subset of ethclient.Client the wallet needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Caller issues raw JSON-RPC calls for node-managed accounts.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithKey makes the wallet sign locally with key. Its address is the only account.
func WithKey(key *ecdsa.PrivateKey) Option {
	return func(w *Wallet) {
		w.key = key
	}
}

// WithPollInterval sets the notification and receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLogger sets the logger used by the wallet.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Wallet is a oneclick.Provider backed by a JSON-RPC node.
type Wallet struct {
	backend      Backend
	caller       Caller
	key          *ecdsa.PrivateKey
	pollInterval time.Duration
	logger       *slog.Logger
	closer       func()

	accountsFeed event.Feed
	chainFeed    event.Feed

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	accounts []common.Address
	chainID  *big.Int
}

var _ oneclick.Provider = (*Wallet)(nil)

// New creates a Wallet over backend. caller serves node-managed accounts and
// may be nil when a key is configured.
func New(backend Backend, caller Caller, opts ...Option) *Wallet {
	w := &Wallet{
		backend:      backend,
		caller:       caller,
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string, opts ...Option) (*Wallet, error) {
	if rawurl == "" {
		return nil, errors.New("rpcwallet: rpc url is required")
	}
	rc, err := gethrpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("rpcwallet: dial %s: %w", rawurl, err)
	}
	w := New(ethclient.NewClient(rc), rc, opts...)
	w.closer = rc.Close
	return w, nil
}

// Address returns the local signing address, or the zero address when
// accounts are managed by the node.
func (w *Wallet) Address() common.Address {
	if w.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

// Accounts returns the accounts already authorized without prompting.
func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	if w.key != nil {
		return []common.Address{w.Address()}, nil
	}
	if w.caller == nil {
		return nil, errors.New("rpcwallet: no key and no rpc caller")
	}
	var accounts []common.Address
	if err := w.caller.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, mapError(err)
	}
	return accounts, nil
}

// RequestAccounts asks for account access. Nodes that do not implement
// eth_requestAccounts are treated as granting their eth_accounts.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.key != nil || w.caller == nil {
		return w.Accounts(ctx)
	}
	var accounts []common.Address
	err := w.caller.CallContext(ctx, &accounts, "eth_requestAccounts")
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeMethodNotFound:
			return w.Accounts(ctx)
		case codeUserRejected:
			return nil, fmt.Errorf("%w: %v", oneclick.ErrAccessDenied, err)
		}
	}
	if err != nil {
		return nil, mapError(err)
	}
	return accounts, nil
}

// ChainID returns the node's chain id.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return id, nil
}

// SubscribeAccountsChanged delivers the account list whenever it changes.
func (w *Wallet) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return w.accountsFeed.Subscribe(ch)
}

// SubscribeChainChanged delivers the chain id whenever it changes.
func (w *Wallet) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return w.chainFeed.Subscribe(ch)
}

// SendTransaction signs and broadcasts tx, returning its hash.
func (w *Wallet) SendTransaction(ctx context.Context, tx oneclick.TxRequest) (common.Hash, error) {
	if w.key != nil {
		return w.sendSigned(ctx, tx)
	}
	return w.sendManaged(ctx, tx)
}

// WaitReceipt polls until the transaction is mined or ctx is done.
func (w *Wallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, mapError(err)
		}
		w.logger.Debug("transaction pending", "tx", hash.Hex())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start begins polling for account and network changes. It is a no-op if the
// wallet is already polling.
func (w *Wallet) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.poll(ctx)
}

// Close stops polling and releases the RPC connection.
func (w *Wallet) Close() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	if w.closer != nil {
		w.closer()
		w.closer = nil
	}
}

func (w *Wallet) sendSigned(ctx context.Context, req oneclick.TxRequest) (common.Hash, error) {
	from := w.Address()
	if req.From != (common.Address{}) && req.From != from {
		return common.Hash{}, fmt.Errorf("rpcwallet: cannot sign for %s with key of %s", req.From.Hex(), from.Hex())
	}

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, mapError(fmt.Errorf("chain id: %w", err))
	}
	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, mapError(fmt.Errorf("nonce: %w", err))
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, mapError(fmt.Errorf("gas tip: %w", err))
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, mapError(fmt.Errorf("latest header: %w", err))
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	gas := req.Gas
	if gas == 0 {
		gas, err = w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, mapError(err)
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("rpcwallet: sign: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, mapError(err)
	}

	w.logger.Debug("transaction broadcast", "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return signed.Hash(), nil
}

// managedTx is the eth_sendTransaction argument object.
type managedTx struct {
	From  common.Address  `json:"from"`
	To    common.Address  `json:"to"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

func (w *Wallet) sendManaged(ctx context.Context, req oneclick.TxRequest) (common.Hash, error) {
	if w.caller == nil {
		return common.Hash{}, errors.New("rpcwallet: no key and no rpc caller")
	}
	arg := managedTx{
		From: req.From,
		To:   req.To,
		Data: req.Data,
	}
	if req.Value != nil {
		arg.Value = (*hexutil.Big)(req.Value)
	}
	if req.Gas != 0 {
		gas := hexutil.Uint64(req.Gas)
		arg.Gas = &gas
	}

	var hash common.Hash
	if err := w.caller.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, mapError(err)
	}
	return hash, nil
}

func (w *Wallet) poll(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check compares the node's view with the last observation and publishes
// differences. The first observation only sets the baseline.
func (w *Wallet) check(ctx context.Context) {
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		w.logger.Debug("chain id poll failed", "error", err)
	}
	accounts, accErr := w.Accounts(ctx)
	if accErr != nil {
		w.logger.Debug("accounts poll failed", "error", accErr)
	}

	w.mu.Lock()
	var chainChanged, accountsChanged bool
	if err == nil {
		chainChanged = w.chainID != nil && w.chainID.Cmp(chainID) != 0
		w.chainID = chainID
	}
	if accErr == nil {
		accountsChanged = w.accounts != nil && !slices.Equal(w.accounts, accounts)
		if accounts == nil {
			accounts = []common.Address{}
		}
		w.accounts = accounts
	}
	w.mu.Unlock()

	if chainChanged {
		w.logger.Info("network changed", "chain", chainID)
		w.chainFeed.Send(new(big.Int).Set(chainID))
	}
	if accountsChanged {
		w.logger.Info("accounts changed", "accounts", len(accounts))
		w.accountsFeed.Send(slices.Clone(accounts))
	}
}
