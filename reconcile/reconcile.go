// Package reconcile merges a freshly parsed offer batch into persisted
// storage via insert-or-update keyed by identity.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"flight-deals-bot/db"
	"flight-deals-bot/identity"
	"flight-deals-bot/models"
)

// Tx is the write surface one reconciliation cycle needs
type Tx interface {
	FindByKey(key string) (*db.Flight, error)
	Insert(key string, offer *models.Offer, seen time.Time) error
	Update(key string, offer *models.Offer, seen time.Time) error
	TouchLastSeen(key string, seen time.Time) error
}

// Store runs a function inside one transaction. The whole batch commits
// or none of it does.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// NewDBStore adapts the concrete database to the Store interface
func NewDBStore(d *db.DB) Store {
	return dbStore{d: d}
}

type dbStore struct {
	d *db.DB
}

func (s dbStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.d.InTx(ctx, func(tx *db.Tx) error {
		return fn(tx)
	})
}

// Result reports what one cycle did to storage
type Result struct {
	Inserted int // keys never seen before
	Updated  int // keys re-seen with different field values
	Touched  int // keys re-seen unchanged, last_seen refreshed only
}

// Reconciler applies parsed offer batches to storage. Offers that
// vanish from a batch are left untouched; staleness is derived
// downstream from last_seen, never from deletion.
type Reconciler struct {
	store Store

	// now is injectable so timestamp behavior is testable
	now func() time.Time
}

// NewReconciler creates a new Reconciler instance
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store: store,
		now:   time.Now,
	}
}

// Apply merges one batch into storage inside a single transaction.
// Safe to re-run with the same batch: the second pass only refreshes
// last_seen.
func (r *Reconciler) Apply(ctx context.Context, offers []models.Offer) (Result, error) {
	var res Result
	if len(offers) == 0 {
		return res, nil
	}

	// one timestamp per batch so "current cycle" is a single value
	seen := r.now()

	err := r.store.InTx(ctx, func(tx Tx) error {
		for i := range offers {
			offer := &offers[i]
			key := identity.Key(offer)

			existing, err := tx.FindByKey(key)
			if err != nil {
				return err
			}

			switch {
			case existing == nil:
				if err := tx.Insert(key, offer, seen); err != nil {
					return err
				}
				res.Inserted++
			case identity.Changed(&existing.Offer, offer):
				if err := tx.Update(key, offer, seen); err != nil {
					return err
				}
				res.Updated++
			default:
				if err := tx.TouchLastSeen(key, seen); err != nil {
					return err
				}
				res.Touched++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("reconciliation failed: %w", err)
	}
	return res, nil
}
