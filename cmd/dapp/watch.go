package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dappkit/internal/config"
	"dappkit/internal/indexer"
	"dappkit/internal/storage"
	"dappkit/internal/storage/postgres"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Decode exchange contract events into storage",
		RunE:  runWatch,
	}

	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "contract addresses (defaults to the facade contracts)")
	cmd.Flags().StringSlice("topic0", nil, "event filters: topic hashes or names such as etherToken.Deposit")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().Bool("follow", false, "keep following new blocks after the initial sync")
	cmd.Flags().Bool("with-timestamps", true, "attach block timestamps to events")
	cmd.Flags().String("out", "./data/events.jsonl", "decoded events JSONL path")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (replaces the JSONL output and file checkpoint)")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().String("checkpoint-name", "watcher", "checkpoint name in the watcher_state table")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("retry-max-delay", 10*time.Second, "maximum delay between retries")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
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

	controller, state, err := connect(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		addresses = state.Contracts.WatchAddresses()
	}

	topic0, err := indexer.ResolveTopics(cfg.Topic0, state.Client.Decoder())
	if err != nil {
		return err
	}

	var (
		sink       storage.Storage
		checkpoint indexer.CheckpointStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = store
		if cfg.CheckpointEnabled {
			checkpoint = &indexer.DBCheckpoint{Store: store, Name: checkpointName(cfg, state.NetworkID)}
		}
	} else {
		sink = storage.NewJsonlStorage(cfg.Out, cfg.Errors)
		if cfg.CheckpointEnabled {
			checkpoint = &indexer.FileCheckpoint{Path: cfg.Checkpoint}
		}
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:      cfg.FromBlock,
		ToBlock:        cfg.ToBlock,
		Addresses:      addresses,
		Topic0:         topic0,
		BatchSize:      cfg.BatchSize,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		WithTimestamps: cfg.WithTimestamps,
	}, state.Client, state.NetworkID, sink, checkpoint, logger)

	logger.Info("watcher start",
		zap.Uint64("network_id", state.NetworkID),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Strings("addresses", watchAddressesString(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("follow", cfg.Follow),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	if !cfg.Follow {
		return runner.Run(ctx)
	}

	// The tracker drops heads while a sync is in flight; the next head covers the gap.
	heads := make(chan uint64, 1)
	state.Engine.OnBlock(func(head uint64) {
		select {
		case heads <- head:
		default:
		}
	})
	if head, ok := state.Engine.LatestBlock(); ok {
		select {
		case heads <- head:
		default:
		}
	}
	return runner.Follow(ctx, heads)
}

func checkpointName(cfg config.WatchConfig, networkID uint64) string {
	return fmt.Sprintf("%s:%d", cfg.CheckpointName, networkID)
}

func watchAddressesString(addresses []common.Address) []string {
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, addr.Hex())
	}
	return out
}
