package composite

import (
	"context"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

// Publisher fans a snapshot out to every configured publisher and reports the
// first error. A failing publisher does not stop the others.
type Publisher struct {
	pubs []port.SnapshotPublisher
}

func New(pubs ...port.SnapshotPublisher) *Publisher {
	// nil publishers are allowed; filter in constructor for safety
	out := make([]port.SnapshotPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

func (p *Publisher) Len() int { return len(p.pubs) }

func (p *Publisher) PublishSnapshot(ctx context.Context, basketID string, snap *model.PriceSnapshot) error {
	var firstErr error
	for _, pub := range p.pubs {
		if err := pub.PublishSnapshot(ctx, basketID, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop discards snapshots.
type Noop struct{}

func (Noop) PublishSnapshot(ctx context.Context, basketID string, snap *model.PriceSnapshot) error {
	return nil
}

var (
	_ port.SnapshotPublisher = (*Publisher)(nil)
	_ port.SnapshotPublisher = Noop{}
)
