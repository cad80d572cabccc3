package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dappkit/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS decoded_events (
	network_id   BIGINT NOT NULL,
	tx_hash      TEXT   NOT NULL,
	log_index    BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	block_hash   TEXT   NOT NULL,
	address      TEXT   NOT NULL,
	contract     TEXT   NOT NULL,
	event_name   TEXT   NOT NULL,
	block_ts     BIGINT,
	args         JSONB  NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network_id, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS decode_errors (
	network_id   BIGINT NOT NULL,
	tx_hash      TEXT   NOT NULL,
	log_index    BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	address      TEXT   NOT NULL,
	topic0       TEXT   NOT NULL,
	error        TEXT   NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network_id, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS account_snapshots (
	network_id   BIGINT NOT NULL,
	address      TEXT   NOT NULL,
	block_number BIGINT NOT NULL,
	eth_balance  NUMERIC NOT NULL,
	weth_balance NUMERIC NOT NULL,
	tokens       JSONB  NOT NULL,
	taken_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (network_id, address, block_number)
);
CREATE TABLE IF NOT EXISTS watcher_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for decoded events, snapshots and watcher state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutEvents inserts or updates decoded events.
func (s *Store) PutEvents(ctx context.Context, events []model.DecodedEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		args, err := json.Marshal(event.Args)
		if err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
		var ts *int64
		if event.Timestamp > 0 {
			v := int64(event.Timestamp)
			ts = &v
		}
		batch.Queue(`
			INSERT INTO decoded_events (
				network_id, tx_hash, log_index, block_number, block_hash, address, contract, event_name, block_ts, args
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (network_id, tx_hash, log_index)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				block_hash = EXCLUDED.block_hash,
				contract = EXCLUDED.contract,
				event_name = EXCLUDED.event_name,
				block_ts = COALESCE(EXCLUDED.block_ts, decoded_events.block_ts),
				args = EXCLUDED.args
		`,
			int64(event.NetworkID),
			event.TxHash,
			int64(event.LogIndex),
			int64(event.BlockNumber),
			event.BlockHash,
			event.Address,
			event.Contract,
			event.EventName,
			ts,
			args,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutDecodeErrors records decode failures, keeping the latest message per log.
func (s *Store) PutDecodeErrors(ctx context.Context, failures []model.DecodeError) error {
	if len(failures) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range failures {
		batch.Queue(`
			INSERT INTO decode_errors (network_id, tx_hash, log_index, block_number, address, topic0, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (network_id, tx_hash, log_index)
			DO UPDATE SET error = EXCLUDED.error, created_at = now()
		`,
			int64(f.NetworkID),
			f.TxHash,
			int64(f.LogIndex),
			int64(f.BlockNumber),
			f.Address,
			f.Topic0,
			f.Error,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range failures {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveAccountSnapshot upserts one account snapshot.
func (s *Store) SaveAccountSnapshot(ctx context.Context, snapshot model.AccountSnapshot) error {
	tokens, err := json.Marshal(snapshot.Tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO account_snapshots (network_id, address, block_number, eth_balance, weth_balance, tokens, taken_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7::timestamptz)
		ON CONFLICT (network_id, address, block_number) DO UPDATE
		SET eth_balance = EXCLUDED.eth_balance,
			weth_balance = EXCLUDED.weth_balance,
			tokens = EXCLUDED.tokens,
			taken_at = EXCLUDED.taken_at
	`,
		int64(snapshot.NetworkID),
		snapshot.Address,
		int64(snapshot.BlockNumber),
		snapshot.EthBalance,
		snapshot.WethBalance,
		tokens,
		snapshot.TakenAt,
	)
	return err
}

// LoadState returns last_processed_block for a watcher name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM watcher_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a watcher name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watcher_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
