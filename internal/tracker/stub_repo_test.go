package tracker

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It stores vehicles and their locations for the pointer-maintenance tests;
// the rest of the interface is inert.
type stubRepo struct {
	vehicles  map[uint64]*models.Vehicle
	locations map[uint64][]*models.Location
	nextLocID uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		vehicles:  make(map[uint64]*models.Vehicle),
		locations: make(map[uint64][]*models.Location),
	}
}

func (s *stubRepo) addVehicle(id uint64) *models.Vehicle {
	v := &models.Vehicle{ID: id, DataSourceID: "test", OriginID: "o"}
	s.vehicles[id] = v
	return v
}

func (s *stubRepo) addLocation(vehicleID uint64, ts time.Time) *models.Location {
	s.nextLocID++
	loc := &models.Location{ID: s.nextLocID, VehicleID: vehicleID, Timestamp: ts}
	s.locations[vehicleID] = append(s.locations[vehicleID], loc)
	return loc
}

func (s *stubRepo) latest(vehicleID uint64) *models.Location {
	var best *models.Location
	for _, loc := range s.locations[vehicleID] {
		if best == nil || loc.Timestamp.After(best.Timestamp) {
			best = loc
		}
	}
	return best
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) MostRecentLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Location, error) {
	return s.latest(vehicleID), nil
}

func (s *stubRepo) LatestLocationBeforeTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, cutoff time.Time) (*models.Location, error) {
	var best *models.Location
	for _, loc := range s.locations[vehicleID] {
		if loc.Timestamp.After(cutoff) {
			continue
		}
		if best == nil || loc.Timestamp.After(best.Timestamp) {
			best = loc
		}
	}
	return best, nil
}

func (s *stubRepo) SetVehiclePointerTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, locationID *uint64, upToDate bool) error {
	v := s.vehicles[vehicleID]
	v.LastLocationID = locationID
	v.PointerUpToDate = upToDate
	return nil
}

func (s *stubRepo) MarkPointerStaleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) error {
	s.vehicles[vehicleID].PointerUpToDate = false
	return nil
}

func (s *stubRepo) ListVehiclesWithStalePointer(ctx context.Context) ([]models.Vehicle, error) {
	var ids []uint64
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Vehicle
	for _, id := range ids {
		latest := s.latest(id)
		if latest == nil {
			continue
		}
		v := s.vehicles[id]
		if v.LastLocationID != nil && *v.LastLocationID == latest.ID {
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

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
func (s *stubRepo) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	return nil, nil
}
func (s *stubRepo) ListVehicles(ctx context.Context, params repository.ListVehiclesParams) ([]models.Vehicle, error) {
	return nil, nil
}
func (s *stubRepo) ListLocations(ctx context.Context, params repository.ListLocationsParams) ([]models.Location, error) {
	return nil, nil
}
func (s *stubRepo) EventIdentifiersByLocationIDs(ctx context.Context, locationIDs []uint64) (map[uint64][]string, error) {
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
