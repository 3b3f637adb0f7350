package port

import "basketsync/internal/domain/model"

// ReferenceStore is the synchronous in-memory view of reference data.
type ReferenceStore interface {
	Lookup(ticker string) (model.ReferenceRecord, bool)
}
