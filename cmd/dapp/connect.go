package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dappkit/internal/account"
	"dappkit/internal/app"
	"dappkit/internal/chain"
	"dappkit/internal/config"
	"dappkit/internal/contracts"
	"dappkit/internal/indexer"
	"dappkit/internal/model"
	"dappkit/internal/storage"
	"dappkit/internal/storage/postgres"
	"dappkit/internal/view"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Bootstrap the wallet and show the front page",
		RunE:  runConnect,
	}
	cmd.Flags().StringSlice("token", nil, "token addresses to show (comma-separated)")
	return cmd
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Snapshot the balances of a wallet account",
		RunE:  runAccount,
	}
	cmd.Flags().String("account", "", "account address (defaults to the first wallet account)")
	cmd.Flags().StringSlice("token", nil, "token addresses to include (comma-separated)")
	cmd.Flags().String("snapshot-out", "", "append the snapshot to this JSONL file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for storing the snapshot")
	return cmd
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBootstrapper(cfg, logger)
	if err != nil {
		return err
	}
	controller := app.NewController(b, logger)
	defer controller.Close()

	snap, err := controller.Wait(ctx)
	if err != nil {
		return err
	}

	var snapshot *model.AccountSnapshot
	if snap.Mode == app.ModeConnected {
		acct, err := takeSnapshot(ctx, cfg, snap.State.Client, snap.State.Contracts, logger)
		if err != nil && !errors.Is(err, account.ErrNoAccount) {
			logger.Warn("account snapshot failed", zap.Error(err))
		}
		if err == nil {
			snapshot = &acct
		}
	}

	fmt.Println(view.Render(snap, snapshot))
	if snap.Mode == app.ModeFailed {
		return snap.Err
	}
	return nil
}

func runAccount(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, state, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	snapshot, err := takeSnapshot(ctx, cfg, state.Client, state.Contracts, logger)
	if err != nil {
		return err
	}

	if cfg.SnapshotOut != "" {
		sink := storage.NewJsonlStorage(cfg.SnapshotOut, "")
		if err := saveSnapshot(ctx, sink, snapshot); err != nil {
			return err
		}
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := saveSnapshot(ctx, store, snapshot); err != nil {
			return err
		}
	}

	return printJSON(snapshot)
}

func takeSnapshot(ctx context.Context, cfg config.Config, client *chain.Client, facade *contracts.Wrappers, logger *zap.Logger) (model.AccountSnapshot, error) {
	tracker := account.NewTracker(client, facade, logger)

	var owner common.Address
	if cfg.Account != "" {
		if !common.IsHexAddress(cfg.Account) {
			return model.AccountSnapshot{}, fmt.Errorf("invalid account address: %s", cfg.Account)
		}
		owner = common.HexToAddress(cfg.Account)
	} else {
		var err error
		owner, err = tracker.DefaultAccount(ctx)
		if err != nil {
			return model.AccountSnapshot{}, err
		}
	}

	tokens, err := indexer.ParseAddresses(cfg.Tokens)
	if err != nil {
		return model.AccountSnapshot{}, err
	}
	if len(tokens) == 0 {
		tokens = tracker.DefaultTokens()
	}
	return tracker.Snapshot(ctx, owner, tokens)
}

func saveSnapshot(ctx context.Context, sink storage.SnapshotStorage, snapshot model.AccountSnapshot) error {
	if err := sink.SaveAccountSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
