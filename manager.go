package oneclick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/branched-services/go-oneclick/abis"
)

// Contracts holds the fixed addresses and descriptor references a session
// binds. Empty references select the embedded descriptors.
type Contracts struct {
	Router       common.Address
	WrappedToken common.Address

	RouterABI       string
	WrappedTokenABI string
	MulticallABI    string
}

// Manager owns the connection lifecycle and the only writable copy of the
// session. It is safe for concurrent use.
type Manager struct {
	locator        Locator
	source         ABISource
	contracts      Contracts
	logger         *slog.Logger
	sink           Sink
	reloadOnChange bool

	mu        sync.Mutex
	state     State
	err       error
	gen       uint64
	expected  *big.Int
	provider  Provider
	chainID   *big.Int
	router    *Contract
	wrapped   *Contract
	multicall abi.ABI
	session   *Session

	subs    []event.Subscription
	inner   []event.Subscription
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewManager creates a Manager in StateUninitialized. A nil source uses a
// default Loader.
func NewManager(locator Locator, source ABISource, contracts Contracts, opts ...ManagerOption) *Manager {
	if source == nil {
		source = NewLoader(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		locator:   locator,
		source:    source,
		contracts: contracts,
		logger:    slog.New(slog.DiscardHandler),
		sink:      discardSink,
		state:     StateUninitialized,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize locates the provider and subscribes to its account-change and
// network-change notifications. Every notification resets the session to
// StateUninitialized. Calling Initialize again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	provider, err := m.locate(ctx)
	if err != nil {
		return err
	}
	m.attach(provider)
	return nil
}

// Connect verifies the provider is on expectedChainID, resolves the router,
// wrapped token and multicall descriptors, and binds the first authorized
// account. With no authorized account the manager waits in
// StateAwaitingUserConnect for RequestConnect. Network switching is never
// attempted.
func (m *Manager) Connect(ctx context.Context, expectedChainID *big.Int) error {
	if expectedChainID == nil {
		return errors.New("oneclick: expected chain id is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errManagerClosed
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.err = nil
	m.session = nil
	m.expected = new(big.Int).Set(expectedChainID)
	m.mu.Unlock()

	report(ctx, m.sink, m.logger, Status{Stage: StageConnecting, Message: "connecting to wallet"})

	provider, err := m.locate(ctx)
	if err != nil {
		m.fail(ctx, gen, StateUninitialized, err, StageProviderUnavailable, "no wallet provider found, install one to continue")
		return err
	}
	m.attach(provider)

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		err = networkError(fmt.Errorf("query chain id: %w", err))
		m.fail(ctx, gen, StateError, err, StageFailed, "could not read the wallet network")
		return err
	}
	if chainID.Cmp(expectedChainID) != 0 {
		err := &WrongNetworkError{Expected: new(big.Int).Set(expectedChainID), Got: chainID}
		m.fail(ctx, gen, StateError, err, StageWrongNetwork,
			fmt.Sprintf("wallet is on chain %s, switch to chain %s", chainID, expectedChainID))
		return err
	}

	router, wrapped, multicall, err := m.resolve(ctx)
	if err != nil {
		m.fail(ctx, gen, StateError, err, StageAbiError, "could not load contract descriptors")
		return err
	}

	if !m.commit(gen, func() {
		m.provider = provider
		m.chainID = chainID
		m.router = router
		m.wrapped = wrapped
		m.multicall = multicall
	}) {
		return ErrSessionReset
	}

	accounts, err := provider.Accounts(ctx)
	if err != nil {
		err = networkError(fmt.Errorf("query accounts: %w", err))
		m.fail(ctx, gen, StateError, err, StageFailed, "could not read wallet accounts")
		return err
	}

	if len(accounts) == 0 {
		if !m.commit(gen, func() { m.state = StateAwaitingUserConnect }) {
			return ErrSessionReset
		}
		m.logger.Info("no authorized account", "chain", chainID)
		report(ctx, m.sink, m.logger, Status{Stage: StageAwaitingConnect, Message: "connect your wallet"})
		return nil
	}

	return m.bind(ctx, gen, accounts[0])
}

// RequestConnect asks the provider for account access and binds the first
// account it grants. It is valid once Connect reached
// StateAwaitingUserConnect, or StateReady to rebind.
func (m *Manager) RequestConnect(ctx context.Context) error {
	m.mu.Lock()
	state, gen, provider := m.state, m.gen, m.provider
	m.mu.Unlock()

	if state != StateAwaitingUserConnect && state != StateReady {
		return fmt.Errorf("%w: cannot request accounts while %s", ErrNotReady, state)
	}

	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrNetwork) || errors.Is(err, ErrAccessDenied) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	if len(accounts) == 0 {
		return ErrAccessDenied
	}

	return m.bind(ctx, gen, accounts[0])
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that ended the last connect attempt, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Session returns the ready session, or ErrNotReady.
func (m *Manager) Session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.session == nil {
		return nil, fmt.Errorf("%w: state is %s", ErrNotReady, m.state)
	}
	return m.session, nil
}

// Close unsubscribes from the provider and stops background work.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.session != nil {
		m.session.invalidate()
	}
	subs := append(m.subs, m.inner...)
	m.subs, m.inner = nil, nil
	m.cancel()
	m.mu.Unlock()

	// Unsubscribing waits for a pending resubscribe, which may need the lock.
	for _, sub := range subs {
		sub.Unsubscribe()
	}

	m.wg.Wait()
}

// locate returns the attached provider or asks the locator for one.
func (m *Manager) locate(ctx context.Context) (Provider, error) {
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()
	if provider != nil {
		return provider, nil
	}

	if m.locator == nil {
		return nil, ErrProviderUnavailable
	}
	provider, err := m.locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if provider == nil {
		return nil, ErrProviderUnavailable
	}
	return provider, nil
}

var errManagerClosed = errors.New("oneclick: manager closed")

// resubscribeBackoff caps the wait between attempts to restore a failed
// notification subscription.
const resubscribeBackoff = 10 * time.Second

// attach subscribes to provider notifications once. A subscription that
// fails is re-established; since notifications may have been missed in
// between, the session is reset first.
func (m *Manager) attach(provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.subs != nil {
		return
	}
	m.provider = provider

	accountsCh := make(chan []common.Address, 1)
	chainCh := make(chan *big.Int, 1)
	initialAccounts := provider.SubscribeAccountsChanged(accountsCh)
	initialChain := provider.SubscribeChainChanged(chainCh)
	m.inner = []event.Subscription{initialAccounts, initialChain}

	accountsSub := m.resubscribe("account", initialAccounts, func() event.Subscription {
		return provider.SubscribeAccountsChanged(accountsCh)
	})
	chainSub := m.resubscribe("network", initialChain, func() event.Subscription {
		return provider.SubscribeChainChanged(chainCh)
	})
	m.subs = []event.Subscription{accountsSub, chainSub}

	m.wg.Add(1)
	go m.watch(accountsCh, chainCh)
}

// resubscribe keeps a notification subscription alive, starting from the
// already established initial one.
func (m *Manager) resubscribe(kind string, initial event.Subscription, subscribe func() event.Subscription) event.Subscription {
	return event.ResubscribeErr(resubscribeBackoff, func(ctx context.Context, lastErr error) (event.Subscription, error) {
		if initial != nil {
			sub := initial
			initial = nil
			return sub, nil
		}
		if m.isClosed() {
			return nil, errManagerClosed
		}
		m.logger.Warn(kind+" subscription failed, resubscribing", "error", lastErr)
		m.reset(kind + " notifications interrupted, reloading")

		sub := subscribe()
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			sub.Unsubscribe()
			return nil, errManagerClosed
		}
		m.inner = append(m.inner, sub)
		return sub, nil
	})
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// watch turns provider notifications into resets until the manager closes.
func (m *Manager) watch(accountsCh <-chan []common.Address, chainCh <-chan *big.Int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case accounts := <-accountsCh:
			m.logger.Info("accounts changed", "accounts", len(accounts))
			m.reset("account changed, reloading")
		case chainID := <-chainCh:
			m.logger.Info("network changed", "chain", chainID)
			m.reset("network changed, reloading")
		}
	}
}

// reset discards the session and every handle derived from it. In-flight
// connects observe the generation change and abandon their results.
func (m *Manager) reset(reason string) {
	m.mu.Lock()
	m.gen++
	m.state = StateUninitialized
	m.err = nil
	if m.session != nil {
		m.session.invalidate()
	}
	m.session = nil
	m.chainID = nil
	m.router = nil
	m.wrapped = nil
	m.multicall = abi.ABI{}
	expected := m.expected
	reload := m.reloadOnChange && expected != nil && !m.closed
	if reload {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	report(m.baseCtx, m.sink, m.logger, Status{Stage: StageReset, Message: reason})

	if reload {
		go func() {
			defer m.wg.Done()
			if err := m.Connect(m.baseCtx, expected); err != nil {
				m.logger.Warn("reconnect after reset failed", "error", err)
			}
		}()
	}
}

// resolve loads the three descriptors and binds the fixed addresses.
func (m *Manager) resolve(ctx context.Context) (router, wrapped *Contract, multicall abi.ABI, err error) {
	routerABI, err := m.source.Load(ctx, abis.SwapRouter02, m.contracts.RouterABI)
	if err != nil {
		return nil, nil, abi.ABI{}, err
	}
	wrappedABI, err := m.source.Load(ctx, abis.WETH, m.contracts.WrappedTokenABI)
	if err != nil {
		return nil, nil, abi.ABI{}, err
	}
	multicall, err = m.source.Load(ctx, abis.Multicall, m.contracts.MulticallABI)
	if err != nil {
		return nil, nil, abi.ABI{}, err
	}
	router = NewContract(abis.SwapRouter02, m.contracts.Router, routerABI)
	wrapped = NewContract(abis.WETH, m.contracts.WrappedToken, wrappedABI)
	return router, wrapped, multicall, nil
}

// bind makes account the session account and enters StateReady.
func (m *Manager) bind(ctx context.Context, gen uint64, account common.Address) error {
	ok := m.commit(gen, func() {
		if m.session != nil {
			m.session.invalidate()
		}
		m.session = newSession(m.provider, m.chainID, account, m.router, m.wrapped,
			NewContract(abis.Multicall, account, m.multicall))
		m.state = StateReady
		m.err = nil
	})
	if !ok {
		return ErrSessionReset
	}
	m.logger.Info("session ready", "account", account.Hex())
	report(ctx, m.sink, m.logger, Status{Stage: StageConnected, Message: "connected as " + account.Hex()})
	return nil
}

// commit runs fn under the lock if no reset happened since gen was taken.
func (m *Manager) commit(gen uint64, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	fn()
	return true
}

// fail records a terminal error for the attempt identified by gen.
func (m *Manager) fail(ctx context.Context, gen uint64, state State, err error, stage Stage, message string) {
	if !m.commit(gen, func() {
		m.state = state
		m.err = err
	}) {
		return
	}
	m.logger.Warn("connect failed", "state", state, "error", err)
	report(ctx, m.sink, m.logger, Status{Stage: stage, Message: message, Err: err})
}
