package oneclick

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

var (
	testChainID  = big.NewInt(534351)
	testRouter   = common.HexToAddress("0x17AFD0263D6909Ba1F9a8EAC697f76532365Fb95")
	testWETH     = common.HexToAddress("0x5300000000000000000000000000000000000004")
	testGHO      = common.HexToAddress("0xD9692f1748aFEe00FACE2da35242417dd05a8615")
	testAccount  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAccount2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTxHash   = common.HexToHash("0xabababababababababababababababababababababababababababababababab")
)

var testContracts = Contracts{
	Router:       testRouter,
	WrappedToken: testWETH,
}

// fakeProvider is an in-memory wallet.
type fakeProvider struct {
	mu sync.Mutex

	chainID     *big.Int
	chainErr    error
	accounts    []common.Address
	accountsErr error
	requested   []common.Address
	requestErr  error
	sendErr     error
	receipt     *types.Receipt
	receiptErr  error

	// onAccounts runs before Accounts returns.
	onAccounts func()
	// release, when non-nil, blocks WaitReceipt until closed.
	release chan struct{}

	sent         []TxRequest
	chainCalls   int
	requestCalls int
	receiptCalls int
	accountsFeed event.Feed
	chainFeed    event.Feed
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		chainID:  new(big.Int).Set(testChainID),
		accounts: []common.Address{testAccount},
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      testTxHash,
			BlockNumber: big.NewInt(100),
			GasUsed:     210000,
		},
	}
}

func (p *fakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	hook := p.onAccounts
	accounts, err := p.accounts, p.accountsErr
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return accounts, err
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestCalls++
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	return p.requested, nil
}

func (p *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainCalls++
	if p.chainErr != nil {
		return nil, p.chainErr
	}
	return new(big.Int).Set(p.chainID), nil
}

func (p *fakeProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *fakeProvider) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

func (p *fakeProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, tx)
	if p.sendErr != nil {
		return common.Hash{}, p.sendErr
	}
	return testTxHash, nil
}

func (p *fakeProvider) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	release := p.release
	p.receiptCalls++
	p.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receipt, p.receiptErr
}

func (p *fakeProvider) sentTxs() []TxRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TxRequest, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

// failingSource fails for one descriptor name and serves the rest embedded.
type failingSource struct {
	name string
}

func (s failingSource) Load(ctx context.Context, name, ref string) (abi.ABI, error) {
	if name == s.name {
		return abi.ABI{}, &AbiFetchError{Contract: name, Ref: ref, Err: errors.New("404 not found")}
	}
	return NewLoader(nil).Load(ctx, name, ref)
}

// recorder is a Sink that keeps every status.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) Publish(ctx context.Context, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	return nil
}

func (r *recorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.Stage
	}
	return out
}

func (r *recorder) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

// readySession connects a manager against p and returns its session.
func readySession(t *testing.T, p *fakeProvider) (*Manager, *Session) {
	t.Helper()
	m := NewManager(StaticLocator(p), nil, testContracts)
	t.Cleanup(m.Close)
	if err := m.Connect(context.Background(), testChainID); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	session, err := m.Session()
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	return m, session
}
