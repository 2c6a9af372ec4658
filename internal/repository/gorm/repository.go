package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// handle picks the transaction when one is active, the root DB otherwise.
func (s *Store) handle(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) GetOrCreateDataSource(ctx context.Context, id, name string) (*models.DataSource, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	item := models.DataSource{ID: id, Name: name}
	err := s.db.WithContext(ctx).
		Where(models.DataSource{ID: id}).
		Attrs(models.DataSource{Name: name}).
		FirstOrCreate(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetOrCreateVehicleTx(ctx context.Context, tx *gorm.DB, dataSourceID, originID string) (*models.Vehicle, bool, error) {
	db := s.handle(ctx, tx)
	var item models.Vehicle
	err := db.Where("data_source_id = ? AND origin_id = ?", dataSourceID, originID).First(&item).Error
	if err == nil {
		return &item, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	item = models.Vehicle{DataSourceID: dataSourceID, OriginID: originID}
	if err := db.Create(&item).Error; err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (s *Store) GetOrCreateLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, timestamp time.Time, lon, lat float64) (*models.Location, bool, error) {
	db := s.handle(ctx, tx)
	var item models.Location
	err := db.Where("vehicle_id = ? AND timestamp = ?", vehicleID, timestamp).First(&item).Error
	if err == nil {
		return &item, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	item = models.Location{VehicleID: vehicleID, Timestamp: timestamp, Lon: lon, Lat: lat}
	if err := db.Create(&item).Error; err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (s *Store) AttachEventsTx(ctx context.Context, tx *gorm.DB, locationID uint64, eventTypeIDs []uint64) error {
	if len(eventTypeIDs) == 0 {
		return nil
	}
	db := s.handle(ctx, tx)
	events := make([]models.EventType, 0, len(eventTypeIDs))
	for _, id := range eventTypeIDs {
		events = append(events, models.EventType{ID: id})
	}
	return db.Model(&models.Location{ID: locationID}).Association("Events").Append(events)
}

func (s *Store) MostRecentLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Location, error) {
	db := s.handle(ctx, tx)
	var item models.Location
	err := db.Where("vehicle_id = ?", vehicleID).Order("timestamp DESC").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LatestLocationBeforeTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, cutoff time.Time) (*models.Location, error) {
	db := s.handle(ctx, tx)
	var item models.Location
	err := db.Where("vehicle_id = ? AND timestamp <= ?", vehicleID, cutoff).Order("timestamp DESC").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SetVehiclePointerTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, locationID *uint64, upToDate bool) error {
	db := s.handle(ctx, tx)
	return db.Model(&models.Vehicle{}).
		Where("id = ?", vehicleID).
		Updates(map[string]any{
			"last_location_id":   locationID,
			"pointer_up_to_date": upToDate,
		}).Error
}

func (s *Store) MarkPointerStaleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) error {
	db := s.handle(ctx, tx)
	return db.Model(&models.Vehicle{}).
		Where("id = ?", vehicleID).
		Update("pointer_up_to_date", false).Error
}

func (s *Store) ListVehiclesWithStalePointer(ctx context.Context) ([]models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Vehicle
	err := s.db.WithContext(ctx).Raw(`
		SELECT v.*
		FROM vehicles v
		JOIN (
			SELECT vehicle_id, MAX(timestamp) AS latest_ts
			FROM locations
			GROUP BY vehicle_id
		) latest ON latest.vehicle_id = v.id
		LEFT JOIN locations cur ON cur.id = v.last_location_id
		WHERE cur.id IS NULL OR cur.timestamp <> latest.latest_ts
	`).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Vehicle
	err := s.db.WithContext(ctx).Preload("LastLocation").First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListVehicles(ctx context.Context, params repository.ListVehiclesParams) ([]models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Joins("LastLocation").
		Where("last_location_id IS NOT NULL")
	if params.Since != nil {
		query = query.Where(`"LastLocation"."timestamp" >= ?`, *params.Since)
	}
	query = query.Order(`"LastLocation"."timestamp" DESC`)
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	var items []models.Vehicle
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListLocations(ctx context.Context, params repository.ListLocationsParams) ([]models.Location, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("vehicle_id = ?", params.VehicleID)
	if params.Before != nil {
		query = query.Where("timestamp <= ?", *params.Before)
	}
	if params.Since != nil {
		query = query.Where("timestamp >= ?", *params.Since)
	}
	query = query.Order("timestamp DESC")
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	var items []models.Location
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) EventIdentifiersByLocationIDs(ctx context.Context, locationIDs []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string)
	if s == nil || s.db == nil || len(locationIDs) == 0 {
		return out, nil
	}
	type row struct {
		LocationID uint64
		Identifier string
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("location_events AS le").
		Select("le.location_id AS location_id, et.identifier AS identifier").
		Joins("JOIN event_types et ON et.id = le.event_type_id").
		Where("le.location_id IN ?", locationIDs).
		Order("et.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.LocationID] = append(out[r.LocationID], r.Identifier)
	}
	return out, nil
}

func (s *Store) UpsertEventTypes(ctx context.Context, items []models.EventType) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{"name_fi", "name_en"}),
	}).Create(&items).Error
}

func (s *Store) ListEventTypes(ctx context.Context) ([]models.EventType, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.EventType
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertImportState(ctx context.Context, item *models.ImportState) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "importer"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_run_at",
			"last_success_at",
			"last_error",
			"stats_json",
		}),
	}).Create(item).Error
}

func (s *Store) GetImportState(ctx context.Context, importer string) (*models.ImportState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ImportState
	err := s.db.WithContext(ctx).Where("importer = ?", importer).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListImportStates(ctx context.Context) ([]models.ImportState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ImportState
	if err := s.db.WithContext(ctx).Order("importer ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
