package service

import (
	"context"
	"fmt"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

type BasketService struct {
	repo port.BasketRepository
}

func NewBasketService(repo port.BasketRepository) *BasketService {
	return &BasketService{repo: repo}
}

// ListBaskets returns every basket with normalized tickers.
func (s *BasketService) ListBaskets(ctx context.Context) ([]model.Basket, error) {
	baskets, err := s.repo.ListBaskets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	for i := range baskets {
		baskets[i] = normalizeBasket(baskets[i])
	}
	return baskets, nil
}

func (s *BasketService) GetBasket(ctx context.Context, id string) (*model.Basket, error) {
	b, err := s.repo.GetBasket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get basket %s: %w", id, err)
	}
	nb := normalizeBasket(*b)
	return &nb, nil
}

func normalizeBasket(b model.Basket) model.Basket {
	out := make([]model.Position, 0, len(b.Positions))
	for _, p := range b.Positions {
		p.Ticker = model.NormalizeTicker(p.Ticker)
		if p.Ticker == "" {
			continue
		}
		out = append(out, p)
	}
	b.Positions = out
	return b
}
