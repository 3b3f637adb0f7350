// Package monitor runs the live dashboard: one valuation view per basket,
// a merged event loop that redraws the status line, and periodic snapshot
// blocks.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/application/usecase/pricesync"
	"basketsync/internal/application/usecase/valuation"
	"basketsync/internal/domain/model"
)

var (
	ErrNoBaskets = errors.New("no baskets configured")

	// ErrBasketNotFound is returned for basket ids the dashboard does not track.
	ErrBasketNotFound = errors.New("basket not found")
)

// SnapshotPublisher receives every published snapshot. *service.SnapshotService implements it.
type SnapshotPublisher interface {
	Publish(ctx context.Context, basketID string, snap *model.PriceSnapshot)
}

type ServiceDeps struct {
	Baskets   []model.Basket
	Refs      port.ReferenceStore
	Source    port.PriceSource
	Clock     pricesync.Clock
	Sink      port.Sink
	Snapshots SnapshotPublisher
	Logger    zerolog.Logger

	PrintEvery       time.Duration
	Timeout          time.Duration
	FailureThreshold int
	Color            bool
}

type update struct {
	basketID string
	ev       pricesync.Event
}

type Service struct {
	deps  ServiceDeps
	fmt   *Formatter
	log   zerolog.Logger
	order []string
	views map[string]*valuation.View

	merged chan update

	// publications outlive Run; Close cancels them
	pubCtx    context.Context
	pubCancel context.CancelFunc
}

// NewService creates a view and a sync controller per basket. Fetching starts
// immediately; Run consumes the results.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		deps:   deps,
		fmt:    NewFormatter(deps.Color),
		log:    deps.Logger.With().Str("component", "monitor").Logger(),
		views:  make(map[string]*valuation.View, len(deps.Baskets)),
		merged: make(chan update, 256),
	}
	s.pubCtx, s.pubCancel = context.WithCancel(context.Background())
	for _, b := range deps.Baskets {
		if _, dup := s.views[b.ID]; dup {
			s.log.Warn().Str("basket", b.ID).Msg("duplicate basket id skipped")
			continue
		}
		ctrl := pricesync.NewController(pricesync.Deps{
			Source:           deps.Source,
			Clock:            deps.Clock,
			Logger:           deps.Logger,
			Timeout:          deps.Timeout,
			FailureThreshold: deps.FailureThreshold,
		})
		id := b.ID
		// subscribe before the view configures the controller so the first result is seen
		ctrl.Subscribe(func(ev pricesync.Event) {
			// every published snapshot is broadcast, even when the redraw below is dropped
			if ev.Published && deps.Snapshots != nil {
				deps.Snapshots.Publish(s.pubCtx, id, ev.Snapshot)
			}
			select {
			case s.merged <- update{basketID: id, ev: ev}:
			default:
				s.log.Debug().Str("basket", id).Msg("event dropped, loop busy")
			}
		})
		s.views[id] = valuation.NewView(b, deps.Refs, ctrl, deps.Logger)
		s.order = append(s.order, id)
	}
	return s
}

// BasketIDs lists tracked baskets in configuration order.
func (s *Service) BasketIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Service) Basket(id string) (model.Basket, error) {
	v, ok := s.views[id]
	if !ok {
		return model.Basket{}, ErrBasketNotFound
	}
	return v.Basket(), nil
}

func (s *Service) Valuation(id string) (model.BasketValuation, error) {
	v, ok := s.views[id]
	if !ok {
		return model.BasketValuation{}, ErrBasketNotFound
	}
	return v.Valuation(), nil
}

func (s *Service) Valuations() []model.BasketValuation {
	out := make([]model.BasketValuation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.views[id].Valuation())
	}
	return out
}

// Refresh forces an immediate fetch for one basket.
func (s *Service) Refresh(id string) error {
	v, ok := s.views[id]
	if !ok {
		return ErrBasketNotFound
	}
	v.Refresh()
	return nil
}

// Close disposes every view. Late responses are dropped by the controllers.
func (s *Service) Close() {
	for _, id := range s.order {
		s.views[id].Close()
	}
	s.pubCancel()
}

func (s *Service) Run(ctx context.Context) error {
	if len(s.order) == 0 {
		return ErrNoBaskets
	}
	defer s.Close()

	every := s.deps.PrintEvery
	if every <= 0 {
		every = time.Minute
	}
	snapTicker := time.NewTicker(every)
	defer snapTicker.Stop()

	s.log.Info().Int("baskets", len(s.order)).Dur("print_every", every).Msg("dashboard started")

	// initial live line
	_ = s.deps.Sink.WriteLive(s.fmt.Render(s.Valuations(), RenderLive))

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snapTicker.C:
			var lines []string
			for _, val := range s.Valuations() {
				lines = append(lines, s.fmt.RenderRows(val)...)
			}
			_ = s.deps.Sink.WriteSnapshot(now, lines)

		case u := <-s.merged:
			if !u.ev.Published {
				s.log.Debug().Str("basket", u.basketID).Str("error", string(u.ev.Status.Error)).
					Int("failures", u.ev.Status.ConsecutiveFailures).Msg("sync failed")
			}
			_ = s.deps.Sink.WriteLive(s.fmt.Render(s.Valuations(), RenderLive))
		}
	}
}
