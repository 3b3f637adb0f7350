package port

import (
	"context"

	"basketsync/internal/domain/model"
)

// PriceSource fetches quotes for a ticker list in one request. Implementations
// must honour ctx cancellation so superseded requests are actually aborted.
type PriceSource interface {
	FetchPrices(ctx context.Context, tickers []string) (*model.PriceResponse, error)
}
