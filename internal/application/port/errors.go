package port

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a price response without a usable "prices" field.
var ErrMalformedResponse = errors.New("malformed price response")

// StatusError is a non-2xx answer from the price endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("price endpoint http %d: %s", e.StatusCode, e.Body)
}

// ErrNotFound is returned by repositories for unknown baskets or tickers.
var ErrNotFound = errors.New("not found")
