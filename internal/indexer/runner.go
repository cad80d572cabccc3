package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dappkit/internal/chain"
	"dappkit/internal/storage"
)

// RunConfig holds runtime settings for the event watcher.
type RunConfig struct {
	FromBlock      uint64
	ToBlock        uint64
	Addresses      []common.Address
	Topic0         []common.Hash
	BatchSize      uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	RetryMaxDelay  time.Duration
	WithTimestamps bool
}

// Runner fetches contract logs, decodes them with the handle's registry and writes them to storage.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	networkID  uint64
	storage    storage.Storage
	checkpoint CheckpointStore
	logger     *zap.Logger
	seen       map[string]uint64
	last       uint64
	hasLast    bool
}

// NewRunner builds a Runner with its dependencies. A nil checkpoint disables resume.
func NewRunner(cfg RunConfig, chainClient *chain.Client, networkID uint64, sink storage.Storage, checkpoint CheckpointStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkpoint == nil {
		checkpoint = &FileCheckpoint{}
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		networkID:  networkID,
		storage:    sink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]uint64),
	}
}

// Run syncs [FromBlock, ToBlock]; a zero ToBlock means the latest block.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	return r.syncTo(ctx, to)
}

// Follow syncs up to every head received until ctx ends or heads is closed.
func (r *Runner) Follow(ctx context.Context, heads <-chan uint64) error {
	if err := r.validate(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case head, ok := <-heads:
			if !ok {
				return nil
			}
			if err := r.syncTo(ctx, head); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) validate() error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	return nil
}

func (r *Runner) syncTo(ctx context.Context, to uint64) error {
	from := r.cfg.FromBlock
	if r.hasLast && r.last >= from {
		from = r.last + 1
	} else {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Debug("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Stringer("range", blockRange), zap.Uint64("blocks", blockRange.Blocks()))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		fresh := make([]types.Log, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}
			fresh = append(fresh, log)
		}

		events, failures := r.chain.DecodeLogs(ctx, r.networkID, fresh, r.cfg.WithTimestamps)
		if err := r.storage.PutEvents(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if err := r.storage.PutDecodeErrors(ctx, failures); err != nil {
			return fmt.Errorf("store decode errors: %w", err)
		}

		if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
			return err
		}
		r.last, r.hasLast = blockRange.To, true
		r.forgetBefore(blockRange.From)

		r.logger.Info("batch complete",
			zap.Int("events", len(events)),
			zap.Int("decode_errors", len(failures)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	policy := RetryPolicy{MaxRetries: r.cfg.MaxRetries, BaseDelay: r.cfg.RetryBackoff, MaxDelay: r.cfg.RetryMaxDelay}
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = log.BlockNumber
	return false
}

// forgetBefore drops dedup entries below block; later batches never revisit them.
func (r *Runner) forgetBefore(block uint64) {
	for id, number := range r.seen {
		if number < block {
			delete(r.seen, id)
		}
	}
}
