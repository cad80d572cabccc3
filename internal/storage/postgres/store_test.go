package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"dappkit/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DAPP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DAPP_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestStoreWatcherState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	name := "test-" + uuid.NewString()

	if _, ok, err := store.LoadState(ctx, name); err != nil || ok {
		t.Fatalf("expected empty state, ok=%v err=%v", ok, err)
	}
	if err := store.SaveState(ctx, name, 10); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveState(ctx, name, 25); err != nil {
		t.Fatalf("save again: %v", err)
	}
	block, ok, err := store.LoadState(ctx, name)
	if err != nil || !ok || block != 25 {
		t.Fatalf("state mismatch: %d %v %v", block, ok, err)
	}
	if _, _, err := store.LoadState(ctx, ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestStoreEventsAreUpserted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tx := "0x" + uuid.NewString()

	event := model.DecodedEvent{
		NetworkID:   42,
		BlockNumber: 7,
		BlockHash:   "0xblock",
		TxHash:      tx,
		LogIndex:    0,
		Address:     "0x1111111111111111111111111111111111111111",
		Contract:    "etherToken",
		EventName:   "Deposit",
		Args:        []model.DecodedArg{{Name: "wad", Type: "uint256", Value: "1"}},
	}
	if err := store.PutEvents(ctx, []model.DecodedEvent{event, event}); err != nil {
		t.Fatalf("put events: %v", err)
	}

	var count int
	if err := store.pool.QueryRow(ctx, `SELECT count(*) FROM decoded_events WHERE tx_hash=$1`, tx).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}

	failure := model.DecodeError{NetworkID: 42, TxHash: tx, LogIndex: 1, Address: event.Address, Topic0: "0xdead", Error: "unknown event"}
	if err := store.PutDecodeErrors(ctx, []model.DecodeError{failure}); err != nil {
		t.Fatalf("put errors: %v", err)
	}

	snapshot := model.AccountSnapshot{
		NetworkID:   42,
		Address:     event.Address,
		BlockNumber: 7,
		EthBalance:  "1000",
		WethBalance: "0",
		TakenAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.SaveAccountSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
}
