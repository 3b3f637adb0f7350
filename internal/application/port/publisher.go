package port

import (
	"context"

	"basketsync/internal/domain/model"
)

// SnapshotPublisher fans published snapshots out to other consumers. It is a
// broadcast, never a source of truth.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, basketID string, snap *model.PriceSnapshot) error
}
