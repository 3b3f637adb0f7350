package service

import (
	"context"

	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

// SnapshotService forwards published snapshots to the configured publisher.
// Publishing failures are logged and never reach the sync loop.
type SnapshotService struct {
	pub port.SnapshotPublisher
	log zerolog.Logger
}

func NewSnapshotService(pub port.SnapshotPublisher, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{pub: pub, log: logger.With().Str("component", "snapshot_service").Logger()}
}

func (s *SnapshotService) Publish(ctx context.Context, basketID string, snap *model.PriceSnapshot) {
	if s.pub == nil || snap == nil {
		return
	}
	if err := s.pub.PublishSnapshot(ctx, basketID, snap); err != nil {
		s.log.Warn().Err(err).Str("basket", basketID).Uint64("seq", snap.Sequence).Msg("snapshot publish failed")
	}
}
