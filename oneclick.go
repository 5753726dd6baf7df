// Package oneclick wraps native currency, approves a router and swaps the
// wrapped token in one atomic transaction, by sending a Multicall3
// aggregate3Value batch to an account that exposes the Multicall3 interface
// on its own address (an EIP-7702 delegated account).
//
// # Connecting
//
// A Manager owns the wallet session. It locates a Provider, checks that the
// provider is on the expected chain, resolves the contract descriptors and
// binds the first authorized account:
//
//	mgr := oneclick.NewManager(locator, oneclick.NewLoader(nil), oneclick.Contracts{
//	    Router:       routerAddr,
//	    WrappedToken: wethAddr,
//	})
//	defer mgr.Close()
//
//	if err := mgr.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := mgr.Connect(ctx, big.NewInt(534351)); err != nil {
//	    log.Fatal(err)
//	}
//	if mgr.State() == oneclick.StateAwaitingUserConnect {
//	    if err := mgr.RequestConnect(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// Any account or network change notification from the provider resets the
// manager to StateUninitialized. Sessions are rebuilt, never patched.
//
// # Swapping
//
// A SwapBuilder reads a ready Session and submits the batch:
//
//	session, err := mgr.Session()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	swaps := oneclick.NewSwapBuilder(ghoAddr)
//	sub, err := swaps.BuildSwapBatch(ctx, session, "0.01")
//	if err != nil {
//	    log.Fatal(err) // ErrInvalidAmount, before any network call
//	}
//	receipt, err := sub.Wait(ctx)
//
// The three calls are always wrap, approve, swap, none of them tolerating
// failure, so one revert aborts the whole batch. The swap accepts any output
// amount unless WithAmountOutMinimum is given.
//
// # Errors
//
// Failures match one of ErrProviderUnavailable, ErrWrongNetwork, ErrAbiFetch,
// ErrInvalidAmount, ErrSubmissionRejected, ErrRevert or ErrNetwork using
// errors.Is. None are retried.
package oneclick
