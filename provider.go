package oneclick

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// TxRequest is the transaction a Provider is asked to sign and broadcast.
// A zero Gas leaves estimation to the provider.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// Provider is the wallet boundary: account access, network identity,
// change notifications and transaction submission.
//
// SendTransaction returns once the transaction has been broadcast. It must
// return an error matching ErrSubmissionRejected when the user declines to
// sign, and a *RevertError when the node refuses the call as reverting.
// WaitReceipt blocks until the transaction is mined or ctx is done.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription
	SubscribeChainChanged(ch chan<- *big.Int) event.Subscription
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Locator obtains the wallet provider present in the current environment.
// It returns ErrProviderUnavailable when there is none.
type Locator interface {
	Locate(ctx context.Context) (Provider, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Provider, error)

// Locate calls f(ctx).
func (f LocatorFunc) Locate(ctx context.Context) (Provider, error) {
	return f(ctx)
}

// StaticLocator always returns p, or ErrProviderUnavailable if p is nil.
func StaticLocator(p Provider) Locator {
	return LocatorFunc(func(context.Context) (Provider, error) {
		if p == nil {
			return nil, ErrProviderUnavailable
		}
		return p, nil
	})
}
