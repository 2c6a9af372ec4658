package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"streetmaint/internal/models"
)

type ListVehiclesParams struct {
	// Since keeps only vehicles whose visible location timestamp is >= Since.
	Since *time.Time
	Limit int
}

type ListLocationsParams struct {
	VehicleID uint64
	// Before is inclusive: only locations with timestamp <= Before. Used to
	// bound history at the vehicle's visible location.
	Before *time.Time
	// Since is inclusive: only locations with timestamp >= Since.
	Since *time.Time
	// Limit caps the result to the most recent entries. Results are ordered
	// most-recent-first.
	Limit int
}

// Repository is the persistence surface consumed by the importers, the
// visibility tracker and the query engine. The ...Tx variants take the
// transaction handle produced by InTx so that an importer's whole apply pass
// executes as one atomic unit.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetOrCreateDataSource(ctx context.Context, id, name string) (*models.DataSource, error)
	GetOrCreateVehicleTx(ctx context.Context, tx *gorm.DB, dataSourceID, originID string) (*models.Vehicle, bool, error)
	GetOrCreateLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, timestamp time.Time, lon, lat float64) (*models.Location, bool, error)
	AttachEventsTx(ctx context.Context, tx *gorm.DB, locationID uint64, eventTypeIDs []uint64) error

	MostRecentLocationTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Location, error)
	LatestLocationBeforeTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, cutoff time.Time) (*models.Location, error)
	SetVehiclePointerTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, locationID *uint64, upToDate bool) error
	MarkPointerStaleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) error
	ListVehiclesWithStalePointer(ctx context.Context) ([]models.Vehicle, error)

	GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, params ListVehiclesParams) ([]models.Vehicle, error)
	ListLocations(ctx context.Context, params ListLocationsParams) ([]models.Location, error)
	EventIdentifiersByLocationIDs(ctx context.Context, locationIDs []uint64) (map[uint64][]string, error)

	UpsertEventTypes(ctx context.Context, items []models.EventType) error
	ListEventTypes(ctx context.Context) ([]models.EventType, error)

	UpsertImportState(ctx context.Context, item *models.ImportState) error
	GetImportState(ctx context.Context, importer string) (*models.ImportState, error)
	ListImportStates(ctx context.Context) ([]models.ImportState, error)
}
