package models

import (
	"time"

	"gorm.io/datatypes"
)

// DataSource is one external telemetry feed. Each importer owns exactly one
// and creates it lazily on its first run.
type DataSource struct {
	ID        string    `gorm:"primaryKey;type:varchar(16)"`
	Name      string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (DataSource) TableName() string {
	return "data_sources"
}

// EventType is a canonical maintenance activity shared across all feeds.
// The set is reconciled from the catalog at startup; rows created out-of-band
// are preserved.
type EventType struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Identifier string `gorm:"type:varchar(16);uniqueIndex;not null"`
	NameFI     string `gorm:"type:varchar(100);not null;default:''"`
	NameEN     string `gorm:"type:varchar(100);not null;default:''"`
}

func (EventType) TableName() string {
	return "event_types"
}

// Vehicle is unique per (data source, origin id). LastLocationID is the
// delayed visibility pointer; PointerUpToDate is true iff the pointer equals
// the vehicle's true most-recent location, which lets recomputation
// short-circuit.
type Vehicle struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement"`
	DataSourceID    string     `gorm:"type:varchar(16);not null;uniqueIndex:uq_vehicle_source_origin,priority:1"`
	OriginID        string     `gorm:"type:varchar(32);not null;index;uniqueIndex:uq_vehicle_source_origin,priority:2"`
	LastLocationID  *uint64    `gorm:"index"`
	LastLocation    *Location  `gorm:"foreignKey:LastLocationID"`
	PointerUpToDate bool       `gorm:"not null;default:false"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	DataSource      DataSource `gorm:"foreignKey:DataSourceID"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// Location is immutable once created; events are attached only at creation
// time and history is append-only per vehicle.
type Location struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement"`
	VehicleID uint64      `gorm:"not null;index;uniqueIndex:uq_location_vehicle_ts,priority:1"`
	Timestamp time.Time   `gorm:"type:timestamptz;not null;index;uniqueIndex:uq_location_vehicle_ts,priority:2"`
	Lon       float64     `gorm:"not null"`
	Lat       float64     `gorm:"not null"`
	Events    []EventType `gorm:"many2many:location_events"`
	CreatedAt time.Time   `gorm:"type:timestamptz;autoCreateTime"`
}

func (Location) TableName() string {
	return "locations"
}

// ImportState records the outcome of the most recent run per importer.
type ImportState struct {
	Importer      string         `gorm:"primaryKey;type:varchar(32)"`
	LastRunAt     *time.Time     `gorm:"type:timestamptz"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (ImportState) TableName() string {
	return "import_state"
}
