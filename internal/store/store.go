// Package store provides access to the external record store that tracks
// each video request through its lifecycle.
package store

import (
	"context"

	"server/internal/domain"
)

// RecordStore is the contract the lifecycle depends on: a point read of one
// record's generation inputs and a merge-patch write of lifecycle fields.
type RecordStore interface {
	// Fetch returns the generation inputs for recordID, or
	// domain.ErrNotFound when no such record exists.
	Fetch(ctx context.Context, recordID string) (*domain.RecordFields, error)

	// Update merge-patches the given fields into the record. Keys absent
	// from the patch keep their stored values.
	Update(ctx context.Context, recordID string, patch domain.RecordPatch) error
}
