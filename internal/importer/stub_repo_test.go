package importer

import (
	"context"
	"time"

	"gorm.io/gorm"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It supports the whole ingestion path (get-or-create chains, pointer writes
// and import state); read queries beyond that are inert.
type stubRepo struct {
	dataSources map[string]*models.DataSource
	vehicles    []*models.Vehicle
	locations   []*models.Location
	events      map[uint64][]uint64 // location ID -> attached event row IDs
	states      map[string]*models.ImportState

	nextVehicleID uint64
	nextLocID     uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		dataSources: make(map[string]*models.DataSource),
		events:      make(map[uint64][]uint64),
		states:      make(map[string]*models.ImportState),
	}
}

func (s *stubRepo) findVehicle(dataSourceID, originID string) *models.Vehicle {
	for _, v := range s.vehicles {
		if v.DataSourceID == dataSourceID && v.OriginID == originID {
			return v
		}
	}
	return nil
}

func (s *stubRepo) vehicleLocations(vehicleID uint64) []*models.Location {
	var out []*models.Location
	for _, loc := range s.locations {
		if loc.VehicleID == vehicleID {
			out = append(out, loc)
		}
	}
	return out
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) GetOrCreateDataSource(ctx context.Context, id, name string) (*models.DataSource, error) {
	if ds, ok := s.dataSources[id]; ok {
		return ds, nil
	}
	ds := &models.DataSource{ID: id, Name: name}
	s.dataSources[id] = ds
	return ds, nil
}

func (s *stubRepo) GetOrCreateVehicleTx(ctx context.Context, tx *gorm.DB, dataSourceID, originID string) (*models.Vehicle, bool, error) {
	if v := s.findVehicle(dataSourceID, originID); v != nil {
		return v, false, nil
	}
	s.nextVehicleID++
	v := &models.Vehicle{ID: s.nextVehicleID, DataSourceID: dataSourceID, OriginID: originID}
	s.vehicles = append(s.vehicles, v)
	return v, true, nil
}

func (s *stubRepo) GetOrCreateLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, timestamp time.Time, lon, lat float64) (*models.Location, bool, error) {
	for _, loc := range s.locations {
		if loc.VehicleID == vehicleID && loc.Timestamp.Equal(timestamp) {
			return loc, false, nil
		}
	}
	s.nextLocID++
	loc := &models.Location{ID: s.nextLocID, VehicleID: vehicleID, Timestamp: timestamp, Lon: lon, Lat: lat}
	s.locations = append(s.locations, loc)
	return loc, true, nil
}

func (s *stubRepo) AttachEventsTx(ctx context.Context, tx *gorm.DB, locationID uint64, eventTypeIDs []uint64) error {
	s.events[locationID] = append(s.events[locationID], eventTypeIDs...)
	return nil
}

func (s *stubRepo) MostRecentLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Location, error) {
	var best *models.Location
	for _, loc := range s.vehicleLocations(vehicleID) {
		if best == nil || loc.Timestamp.After(best.Timestamp) {
			best = loc
		}
	}
	return best, nil
}

func (s *stubRepo) LatestLocationBeforeTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, cutoff time.Time) (*models.Location, error) {
	var best *models.Location
	for _, loc := range s.vehicleLocations(vehicleID) {
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
	for _, v := range s.vehicles {
		if v.ID == vehicleID {
			v.LastLocationID = locationID
			v.PointerUpToDate = upToDate
		}
	}
	return nil
}

func (s *stubRepo) MarkPointerStaleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) error {
	for _, v := range s.vehicles {
		if v.ID == vehicleID {
			v.PointerUpToDate = false
		}
	}
	return nil
}

func (s *stubRepo) ListVehiclesWithStalePointer(ctx context.Context) ([]models.Vehicle, error) {
	return nil, nil
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

func (s *stubRepo) UpsertImportState(ctx context.Context, item *models.ImportState) error {
	s.states[item.Importer] = item
	return nil
}

func (s *stubRepo) GetImportState(ctx context.Context, importer string) (*models.ImportState, error) {
	return s.states[importer], nil
}

func (s *stubRepo) ListImportStates(ctx context.Context) ([]models.ImportState, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
