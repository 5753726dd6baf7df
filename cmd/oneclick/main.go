// Command oneclick wraps native currency, approves the router and swaps it in
// a single self-multicall transaction.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	oneclick "github.com/branched-services/go-oneclick"
	"github.com/branched-services/go-oneclick/internal/config"
	"github.com/branched-services/go-oneclick/internal/logging"
	"github.com/branched-services/go-oneclick/provider/rpcwallet"
	"github.com/branched-services/go-oneclick/sink/amqpsink"
	"github.com/branched-services/go-oneclick/sink/redissink"
)

type options struct {
	configPath string
	amount     string
	dryRun     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("ONECLICK_CONFIG"), "path to the YAML configuration (defaults to Scroll Sepolia)")
	flag.StringVar(&opts.amount, "amount", "", "amount of native currency to swap, e.g. 0.01")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "build and print the batch without sending it")
	flag.Parse()

	if opts.amount == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("oneclick: %v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	sink, closeSinks, err := buildSink(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	wallet, err := dialWallet(ctx, cfg, logging.Named(logger.Logger, "wallet"))
	if err != nil {
		return err
	}
	defer wallet.Close()
	wallet.Start(ctx)

	manager := oneclick.NewManager(
		oneclick.StaticLocator(wallet),
		oneclick.NewLoader(nil),
		cfg.OneclickContracts(),
		oneclick.WithManagerLogger(logging.Named(logger.Logger, "manager")),
		oneclick.WithManagerSink(sink),
		oneclick.WithReloadOnChange(cfg.Wallet.ReloadOnChange),
	)
	defer manager.Close()

	if err := manager.Connect(ctx, cfg.ChainID()); err != nil {
		return err
	}
	if manager.State() == oneclick.StateAwaitingUserConnect {
		if err := manager.RequestConnect(ctx); err != nil {
			return err
		}
	}
	session, err := manager.Session()
	if err != nil {
		return err
	}

	swapOpts := append(cfg.SwapOptions(),
		oneclick.WithSwapLogger(logging.Named(logger.Logger, "swap")),
		oneclick.WithSwapSink(sink),
	)
	builder := oneclick.NewSwapBuilder(cfg.DestinationToken(), swapOpts...)

	batch, err := builder.Build(session, opts.amount)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return printBatch(out, batch, session.Self(), session.WrappedToken(), session.Router())
	}

	waitCtx := ctx
	if cfg.Wallet.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Wallet.ReceiptTimeout)
		defer cancel()
	}

	sub, err := builder.Submit(waitCtx, session, batch)
	if err != nil {
		return err
	}
	receipt, err := sub.Wait(waitCtx)
	if err != nil {
		var revert *oneclick.RevertError
		if errors.As(err, &revert) && revert.TxHash != (common.Hash{}) {
			fmt.Fprintf(out, "reverted: %s\n", revert.TxHash.Hex())
		}
		return err
	}

	fmt.Fprintf(out, "swapped %s in %s (block %s, gas %d)\n",
		opts.amount, receipt.TxHash.Hex(), receipt.BlockNumber, receipt.GasUsed)
	return nil
}

// buildSink combines the log sink with any configured external sinks.
func buildSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (oneclick.Sink, func(), error) {
	sinks := []oneclick.Sink{oneclick.LogSink(logging.Named(logger, "status"))}
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close status sink", "error", err)
			}
		}
	}

	if r := cfg.Status.Redis; r.Address != "" {
		s, err := redissink.Dial(ctx, redissink.Config{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
			Channel:  r.Channel,
		})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}

	if a := cfg.Status.AMQP; a.URL != "" {
		s, err := amqpsink.Dial(amqpsink.Config{
			URL:     a.URL,
			Queue:   a.Queue,
			Durable: a.Durable,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}

	return oneclick.MultiSink(sinks...), closeAll, nil
}

// dialWallet connects the RPC wallet, signing locally when a key is set in
// the configured environment variable.
func dialWallet(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rpcwallet.Wallet, error) {
	opts := []rpcwallet.Option{
		rpcwallet.WithPollInterval(cfg.Wallet.PollInterval),
		rpcwallet.WithLogger(logger),
	}

	if env := cfg.Wallet.PrivateKeyEnv; env != "" {
		if hexKey := strings.TrimSpace(os.Getenv(env)); hexKey != "" {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
			if err != nil {
				return nil, fmt.Errorf("parse key from %s: %w", env, err)
			}
			opts = append(opts, rpcwallet.WithKey(key))
			logger.Info("signing locally", "account", crypto.PubkeyToAddress(key.PublicKey).Hex())
		}
	}

	return rpcwallet.Dial(ctx, cfg.Network.RPCURL, opts...)
}
