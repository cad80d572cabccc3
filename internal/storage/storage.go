package storage

import (
	"context"

	"dappkit/internal/model"
)

// Storage defines a sink for decoded contract events.
type Storage interface {
	PutEvents(ctx context.Context, events []model.DecodedEvent) error
	PutDecodeErrors(ctx context.Context, failures []model.DecodeError) error
}

// SnapshotStorage persists account snapshots.
type SnapshotStorage interface {
	SaveAccountSnapshot(ctx context.Context, snapshot model.AccountSnapshot) error
}
