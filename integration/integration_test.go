package integration

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	oneclick "github.com/branched-services/go-oneclick"
	"github.com/branched-services/go-oneclick/provider/rpcwallet"
)

// Test private key (Anvil default account 0)
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const anvilURL = "http://localhost:8545"

// Placeholder deployment. Anvil has no router or token at these addresses;
// Connect and Build never call them.
var contracts = oneclick.Contracts{
	Router:       common.HexToAddress("0x17AFD0263D6909Ba1F9a8EAC697f76532365Fb95"),
	WrappedToken: common.HexToAddress("0x5300000000000000000000000000000000000004"),
}

func dial(t *testing.T) (*rpcwallet.Wallet, common.Address) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("Set INTEGRATION_TEST=1 to run integration tests")
	}

	key, err := crypto.HexToECDSA(testPrivateKey)
	if err != nil {
		t.Fatalf("Failed to parse private key: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wallet, err := rpcwallet.Dial(ctx, anvilURL, rpcwallet.WithKey(key), rpcwallet.WithPollInterval(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to connect to Anvil: %v", err)
	}
	t.Cleanup(wallet.Close)
	return wallet, crypto.PubkeyToAddress(key.PublicKey)
}

func TestConnect(t *testing.T) {
	wallet, account := dial(t)
	ctx := context.Background()

	chainID, err := wallet.ChainID(ctx)
	if err != nil {
		t.Fatalf("Failed to get chain ID: %v", err)
	}
	t.Logf("Connected to chain ID: %d", chainID)

	manager := oneclick.NewManager(oneclick.StaticLocator(wallet), oneclick.NewLoader(nil), contracts)
	defer manager.Close()

	if err := manager.Connect(ctx, chainID); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if manager.State() != oneclick.StateReady {
		t.Fatalf("Expected ready, got %s", manager.State())
	}

	session, err := manager.Session()
	if err != nil {
		t.Fatal(err)
	}
	if session.Account() != account {
		t.Errorf("Expected account %s, got %s", account.Hex(), session.Account().Hex())
	}
	if session.Self().Address() != account {
		t.Errorf("Expected multicall handle at %s, got %s", account.Hex(), session.Self().Address().Hex())
	}
}

func TestConnectWrongNetwork(t *testing.T) {
	wallet, _ := dial(t)
	ctx := context.Background()

	chainID, err := wallet.ChainID(ctx)
	if err != nil {
		t.Fatal(err)
	}

	manager := oneclick.NewManager(oneclick.StaticLocator(wallet), oneclick.NewLoader(nil), contracts)
	defer manager.Close()

	expected := new(big.Int).Add(chainID, big.NewInt(1))
	err = manager.Connect(ctx, expected)

	var wrong *oneclick.WrongNetworkError
	if !errors.As(err, &wrong) {
		t.Fatalf("Expected WrongNetworkError, got %v", err)
	}
	if wrong.Got.Cmp(chainID) != 0 {
		t.Errorf("Expected actual chain %s, got %s", chainID, wrong.Got)
	}
	if manager.State() != oneclick.StateError {
		t.Errorf("Expected error state, got %s", manager.State())
	}
}

// TestSubmitSelfTransaction sends a built batch from a plain Anvil account.
// Without a delegation the account has no code, so the batch calldata is not
// executed; the test covers signing, fees, broadcast and receipt tracking.
func TestSubmitSelfTransaction(t *testing.T) {
	wallet, account := dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chainID, err := wallet.ChainID(ctx)
	if err != nil {
		t.Fatal(err)
	}

	manager := oneclick.NewManager(oneclick.StaticLocator(wallet), oneclick.NewLoader(nil), contracts)
	defer manager.Close()
	if err := manager.Connect(ctx, chainID); err != nil {
		t.Fatal(err)
	}
	session, err := manager.Session()
	if err != nil {
		t.Fatal(err)
	}

	builder := oneclick.NewSwapBuilder(common.HexToAddress("0xD9692f1748aFEe00FACE2da35242417dd05a8615"))
	batch, err := builder.Build(session, "0.01")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sub, err := builder.Submit(ctx, session, batch)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	receipt, err := sub.Wait(ctx)
	if err != nil {
		t.Fatalf("Submission failed: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("Transaction failed: status=%d", receipt.Status)
	}

	client, err := ethclient.DialContext(ctx, anvilURL)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	tx, _, err := client.TransactionByHash(ctx, receipt.TxHash)
	if err != nil {
		t.Fatalf("Failed to fetch transaction: %v", err)
	}
	if tx.To() == nil || *tx.To() != account {
		t.Errorf("Expected transaction to %s, got %v", account.Hex(), tx.To())
	}
	if tx.Value().Cmp(batch.Value()) != 0 {
		t.Errorf("Expected value %s, got %s", batch.Value(), tx.Value())
	}
	t.Logf("Transaction successful! Gas used: %d", receipt.GasUsed)
}

