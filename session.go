package oneclick

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// State is the connection lifecycle state of a Manager.
type State uint8

const (
	// StateUninitialized is the initial state and the target of every reset.
	StateUninitialized State = iota

	// StateConnecting means Connect is checking the network and resolving contracts.
	StateConnecting

	// StateAwaitingUserConnect means the network is right but no account is authorized yet.
	StateAwaitingUserConnect

	// StateReady means a Session is available.
	StateReady

	// StateError means the last connect attempt failed; see Manager.Err.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateAwaitingUserConnect:
		return "awaiting-user-connect"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Session binds a provider, a verified chain and an account to the contract
// handles needed to build a swap batch. Sessions are never patched: the
// Manager invalidates them on any account or network change, on rebind and
// on Close, and builds a new one.
type Session struct {
	provider     Provider
	chainID      *big.Int
	account      common.Address
	router       *Contract
	wrappedToken *Contract
	self         *Contract

	done chan struct{}
	once sync.Once
}

func newSession(provider Provider, chainID *big.Int, account common.Address, router, wrapped, self *Contract) *Session {
	return &Session{
		provider:     provider,
		chainID:      new(big.Int).Set(chainID),
		account:      account,
		router:       router,
		wrappedToken: wrapped,
		self:         self,
		done:         make(chan struct{}),
	}
}

// Done is closed once the session has been invalidated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Valid reports whether the session is still the Manager's current one.
func (s *Session) Valid() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Err returns ErrSessionReset once the session has been invalidated.
func (s *Session) Err() error {
	if s.Valid() {
		return nil
	}
	return ErrSessionReset
}

func (s *Session) invalidate() {
	s.once.Do(func() { close(s.done) })
}

// Provider returns the wallet provider the session was established with.
func (s *Session) Provider() Provider {
	return s.provider
}

// ChainID returns the verified chain id.
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Account returns the connected account.
func (s *Session) Account() common.Address {
	return s.account
}

// Router returns the swap router handle.
func (s *Session) Router() *Contract {
	return s.router
}

// WrappedToken returns the wrapped native token handle.
func (s *Session) WrappedToken() *Contract {
	return s.wrappedToken
}

// Self returns the multicall handle bound to the connected account's own address.
func (s *Session) Self() *Contract {
	return s.self
}
