// Package tracker maintains each vehicle's delayed visibility pointer: the
// most recent location that is old enough to be shown publicly. Arrival of
// data and visibility of data are deliberately decoupled so that feeds with
// jitter, or feeds requiring a grace period, never expose a position early.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// Notifier receives a callback whenever a vehicle's visible pointer moves to
// a new location. The live stream hub implements this.
type Notifier interface {
	PointerUpdated(vehicleID uint64, loc *models.Location)
}

type Tracker struct {
	Repo     repository.Repository
	Logger   *zap.Logger
	Notifier Notifier

	// Delay is the visibility window. Locations newer than now-Delay are
	// withheld; 0 disables the window.
	Delay time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// OnNewLocation is the O(1) fast path, invoked synchronously inside the
// importer's apply transaction right after loc was inserted for vehicle.
//
// A location older than the vehicle's existing tail is a late, out-of-order
// arrival and never moves the pointer. A location inside the delay window
// cannot be shown yet: the pointer stays put and the vehicle is marked stale
// so the periodic sweep promotes it once it has aged past the window.
func (t *Tracker) OnNewLocation(ctx context.Context, tx *gorm.DB, vehicle *models.Vehicle, loc *models.Location) error {
	tail, err := t.Repo.MostRecentLocationTx(ctx, tx, vehicle.ID)
	if err != nil {
		return err
	}
	if tail != nil && tail.Timestamp.After(loc.Timestamp) {
		// Late arrival relative to existing data; no recomputation.
		if t.Logger != nil {
			t.Logger.Debug("out-of-order location, pointer untouched",
				zap.Uint64("vehicle_id", vehicle.ID),
				zap.Time("timestamp", loc.Timestamp),
			)
		}
		return nil
	}

	if t.Delay > 0 && loc.Timestamp.After(t.now().Add(-t.Delay)) {
		// Too recent to show. The stored pointer is now known stale.
		if err := t.Repo.MarkPointerStaleTx(ctx, tx, vehicle.ID); err != nil {
			return err
		}
		vehicle.PointerUpToDate = false
		return nil
	}

	if err := t.Repo.SetVehiclePointerTx(ctx, tx, vehicle.ID, &loc.ID, true); err != nil {
		return err
	}
	vehicle.LastLocationID = &loc.ID
	vehicle.PointerUpToDate = true
	if t.Notifier != nil {
		t.Notifier.PointerUpdated(vehicle.ID, loc)
	}
	return nil
}

// RecomputeIfStale re-derives the visible pointer from stored locations. It
// is a no-op when the pointer is already known to be the vehicle's true
// latest location, unless force is set.
func (t *Tracker) RecomputeIfStale(ctx context.Context, vehicle *models.Vehicle, force bool) error {
	if vehicle.PointerUpToDate && !force {
		return nil
	}

	var (
		ptr     *models.Location
		changed bool
	)
	err := t.Repo.InTx(ctx, func(tx *gorm.DB) error {
		latest, err := t.Repo.MostRecentLocationTx(ctx, tx, vehicle.ID)
		if err != nil {
			return err
		}
		if t.Delay > 0 {
			ptr, err = t.Repo.LatestLocationBeforeTx(ctx, tx, vehicle.ID, t.now().Add(-t.Delay))
			if err != nil {
				return err
			}
		} else {
			ptr = latest
		}

		var ptrID *uint64
		if ptr != nil {
			ptrID = &ptr.ID
		}
		upToDate := (ptr == nil) == (latest == nil) &&
			(ptr == nil || ptr.ID == latest.ID)

		changed = !pointerEqual(vehicle.LastLocationID, ptrID)
		if err := t.Repo.SetVehiclePointerTx(ctx, tx, vehicle.ID, ptrID, upToDate); err != nil {
			return err
		}
		vehicle.LastLocationID = ptrID
		vehicle.PointerUpToDate = upToDate
		return nil
	})
	if err != nil {
		return err
	}

	if changed && ptr != nil && t.Notifier != nil {
		t.Notifier.PointerUpdated(vehicle.ID, ptr)
	}
	return nil
}

// SweepStaleVehicles is the periodic catch-up: it promotes pointers for every
// vehicle whose stored pointer no longer matches its true latest location.
// This is what surfaces a previously-too-recent location once enough
// wall-clock time has passed without any new arrival. Returns the number of
// vehicles recomputed.
func (t *Tracker) SweepStaleVehicles(ctx context.Context) (int, error) {
	vehicles, err := t.Repo.ListVehiclesWithStalePointer(ctx)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range vehicles {
		if err := t.RecomputeIfStale(ctx, &vehicles[i], true); err != nil {
			if t.Logger != nil {
				t.Logger.Warn("pointer recompute failed",
					zap.Uint64("vehicle_id", vehicles[i].ID),
					zap.Error(err),
				)
			}
			continue
		}
		updated++
	}
	return updated, nil
}

func pointerEqual(a, b *uint64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
