package port

import (
	"context"

	"basketsync/internal/domain/model"
)

// BasketRepository reads basket definitions owned by the CRUD layer.
type BasketRepository interface {
	ListBaskets(ctx context.Context) ([]model.Basket, error)
	GetBasket(ctx context.Context, id string) (*model.Basket, error)
}

// ReferenceRepository reads static per-ticker metadata.
type ReferenceRepository interface {
	ListReferences(ctx context.Context) ([]model.ReferenceRecord, error)
	GetReference(ctx context.Context, ticker string) (*model.ReferenceRecord, error)
}

// Repository is what a storage backend offers this service. The Save methods
// exist only for seeding from configuration.
type Repository interface {
	BasketRepository
	ReferenceRepository

	SaveBasket(ctx context.Context, b model.Basket) error
	SaveReference(ctx context.Context, r model.ReferenceRecord) error

	Close() error
}
