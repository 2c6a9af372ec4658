package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It mirrors the read-query semantics of the SQL store: the vehicle list is
// ordered by visible timestamp descending and excludes vehicles without a
// visible location, and location listings are most-recent-first with
// inclusive bounds.
type stubRepo struct {
	vehicles  map[uint64]*models.Vehicle
	locations []*models.Location
	events    map[uint64][]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		vehicles: make(map[uint64]*models.Vehicle),
		events:   make(map[uint64][]string),
	}
}

func (s *stubRepo) addVehicle(id uint64, visible *models.Location) *models.Vehicle {
	v := &models.Vehicle{ID: id, DataSourceID: "test", OriginID: "o"}
	if visible != nil {
		v.LastLocationID = &visible.ID
		v.LastLocation = visible
	}
	s.vehicles[id] = v
	return v
}

func (s *stubRepo) addLocation(id, vehicleID uint64, ts time.Time, events ...string) *models.Location {
	loc := &models.Location{ID: id, VehicleID: vehicleID, Timestamp: ts, Lon: 22.2, Lat: 60.4}
	s.locations = append(s.locations, loc)
	if len(events) > 0 {
		s.events[id] = events
	}
	return loc
}

func (s *stubRepo) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *stubRepo) ListVehicles(ctx context.Context, params repository.ListVehiclesParams) ([]models.Vehicle, error) {
	var out []models.Vehicle
	for _, v := range s.vehicles {
		if v.LastLocation == nil {
			continue
		}
		if params.Since != nil && v.LastLocation.Timestamp.Before(*params.Since) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastLocation.Timestamp.After(out[j].LastLocation.Timestamp)
	})
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) ListLocations(ctx context.Context, params repository.ListLocationsParams) ([]models.Location, error) {
	var out []models.Location
	for _, loc := range s.locations {
		if loc.VehicleID != params.VehicleID {
			continue
		}
		if params.Before != nil && loc.Timestamp.After(*params.Before) {
			continue
		}
		if params.Since != nil && loc.Timestamp.Before(*params.Since) {
			continue
		}
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) EventIdentifiersByLocationIDs(ctx context.Context, locationIDs []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string)
	for _, id := range locationIDs {
		if events, ok := s.events[id]; ok {
			out[id] = events
		}
	}
	return out, nil
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }
func (s *stubRepo) GetOrCreateDataSource(ctx context.Context, id, name string) (*models.DataSource, error) {
	return nil, nil
}
func (s *stubRepo) GetOrCreateVehicleTx(ctx context.Context, tx *gorm.DB, dataSourceID, originID string) (*models.Vehicle, bool, error) {
	return nil, false, nil
}
func (s *stubRepo) GetOrCreateLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, timestamp time.Time, lon, lat float64) (*models.Location, bool, error) {
	return nil, false, nil
}
func (s *stubRepo) AttachEventsTx(ctx context.Context, tx *gorm.DB, locationID uint64, eventTypeIDs []uint64) error {
	return nil
}
func (s *stubRepo) MostRecentLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Location, error) {
	return nil, nil
}
func (s *stubRepo) LatestLocationBeforeTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, cutoff time.Time) (*models.Location, error) {
	return nil, nil
}
func (s *stubRepo) SetVehiclePointerTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, locationID *uint64, upToDate bool) error {
	return nil
}
func (s *stubRepo) MarkPointerStaleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) error {
	return nil
}
func (s *stubRepo) ListVehiclesWithStalePointer(ctx context.Context) ([]models.Vehicle, error) {
	return nil, nil
}
func (s *stubRepo) UpsertEventTypes(ctx context.Context, items []models.EventType) error { return nil }
func (s *stubRepo) ListEventTypes(ctx context.Context) ([]models.EventType, error) {
	return nil, nil
}
func (s *stubRepo) UpsertImportState(ctx context.Context, item *models.ImportState) error { return nil }
func (s *stubRepo) GetImportState(ctx context.Context, importer string) (*models.ImportState, error) {
	return nil, nil
}
func (s *stubRepo) ListImportStates(ctx context.Context) ([]models.ImportState, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
