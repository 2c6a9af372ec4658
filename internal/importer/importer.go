// Package importer contains the per-feed ingestion units. Each importer is
// bound to one data source and composes fetch, normalize and apply: fetch one
// raw batch from its feed, map the feed's event vocabulary onto the canonical
// catalog, and idempotently upsert vehicles and locations in one transaction.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"streetmaint/internal/config"
	"streetmaint/internal/models"
	"streetmaint/internal/repository"
	"streetmaint/internal/tracker"
)

const defaultRunInterval = 5 * time.Second

// Record is one normalized telemetry unit ready to be applied to the store.
type Record struct {
	OriginID     string
	Timestamp    time.Time
	Lon          float64
	Lat          float64
	EventTypeIDs []uint64
}

// Stats summarizes one run; it is logged and persisted to import_state.
type Stats struct {
	Total        int `json:"total"`
	NewLocations int `json:"new_locations"`
	Ignored      int `json:"ignored"`
}

type Importer interface {
	Name() string
	RunInterval() time.Duration
	// Run fetches, normalizes and applies one batch. Errors are not handled
	// internally; the scheduler is responsible for logging a failed run.
	Run(ctx context.Context) (Stats, error)
}

// ConfigError reports a missing or invalid importer setting. It is produced
// at construction time, never mid-run; the registry logs it and skips the
// importer.
type ConfigError struct {
	Importer string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("importer %s: %s", e.Importer, e.Reason)
}

// Deps is everything an importer needs besides its own feed settings.
type Deps struct {
	Repo    repository.Repository
	Tracker *tracker.Tracker
	Logger  *zap.Logger

	// Events maps canonical event identifiers to their stored row IDs
	// (catalog.IdentifierIndex output).
	Events map[string]uint64

	// DropEventless drops normalized records whose mapped event set is
	// empty instead of persisting them eventless.
	DropEventless bool

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// base carries the shared importer machinery: identity, schedule, the
// label -> event row translation and the idempotent apply pass.
type base struct {
	id            string
	interval      time.Duration
	dropEventless bool
	events        map[string]uint64
	repo          repository.Repository
	tracker       *tracker.Tracker
	logger        *zap.Logger
	nowFn         func() time.Time
}

func (b *base) now() time.Time {
	if b.nowFn != nil {
		return b.nowFn()
	}
	return time.Now()
}

// newBase validates the shared settings and resolves the importer's static
// label -> canonical-identifier mapping against the stored catalog. It also
// lazily creates the importer's data source row.
func newBase(ctx context.Context, id, displayName string, deps Deps, cfg config.ImporterConfig, mapping map[string]string) (base, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return base{}, &ConfigError{Importer: id, Reason: `"url" is required`}
	}
	interval := cfg.RunInterval
	if interval <= 0 {
		interval = defaultRunInterval
	}

	events := make(map[string]uint64)
	for label, identifier := range mapping {
		if identifier == "" {
			continue
		}
		rowID, ok := deps.Events[identifier]
		if !ok {
			return base{}, fmt.Errorf("importer %s: mapping target %q is not in the event catalog", id, identifier)
		}
		events[label] = rowID
	}

	if _, err := deps.Repo.GetOrCreateDataSource(ctx, id, displayName); err != nil {
		return base{}, fmt.Errorf("importer %s: ensuring data source: %w", id, err)
	}

	return base{
		id:            id,
		interval:      interval,
		dropEventless: deps.DropEventless,
		events:        events,
		repo:          deps.Repo,
		tracker:       deps.Tracker,
		logger:        deps.Logger.Named(id),
		nowFn:         deps.Now,
	}, nil
}

func (b *base) Name() string {
	return b.id
}

func (b *base) RunInterval() time.Duration {
	return b.interval
}

// fetchTimeout bounds a feed request below the run interval so a hung fetch
// cannot stack runs indefinitely.
func (b *base) fetchTimeout() time.Duration {
	return b.interval / 2
}

// mapEvents translates source labels through the importer's static table.
// Unknown labels are dropped with a diagnostic, never fatal.
func (b *base) mapEvents(labels []string) []uint64 {
	var ids []uint64
	for _, label := range labels {
		id, ok := b.events[label]
		if !ok {
			b.logger.Debug("unknown event label", zap.String("label", label))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// apply upserts the normalized records as one atomic unit: get-or-create the
// vehicle by (data source, origin id), get-or-create the location by
// (vehicle, timestamp), and only when the location is new attach its events
// and run the visibility tracker's fast path. Re-delivery of an already-seen
// (vehicle, timestamp) pair is a no-op. Returns the number of new locations.
func (b *base) apply(ctx context.Context, records []Record) (int, error) {
	created := 0
	err := b.repo.InTx(ctx, func(tx *gorm.DB) error {
		created = 0
		for _, rec := range records {
			vehicle, isNew, err := b.repo.GetOrCreateVehicleTx(ctx, tx, b.id, rec.OriginID)
			if err != nil {
				return err
			}
			if isNew {
				b.logger.Debug("new vehicle", zap.String("origin_id", rec.OriginID))
			}

			loc, wasCreated, err := b.repo.GetOrCreateLocationTx(ctx, tx, vehicle.ID, rec.Timestamp, rec.Lon, rec.Lat)
			if err != nil {
				return err
			}
			if !wasCreated {
				continue
			}
			if err := b.repo.AttachEventsTx(ctx, tx, loc.ID, rec.EventTypeIDs); err != nil {
				return err
			}
			if err := b.tracker.OnNewLocation(ctx, tx, vehicle, loc); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (b *base) logStats(stats Stats) {
	if stats.NewLocations > 0 {
		b.logger.Info("new locations",
			zap.Int("new", stats.NewLocations),
			zap.Int("total", stats.Total),
			zap.Int("ignored", stats.Ignored),
		)
		return
	}
	b.logger.Info("no new locations", zap.Int("ignored", stats.Ignored))
}

// RecordRun persists the outcome of one scheduled run to import_state,
// preserving the previous success timestamp and stats on failure.
func RecordRun(ctx context.Context, repo repository.Repository, name string, stats Stats, runErr error, now time.Time) error {
	state := &models.ImportState{Importer: name, LastRunAt: &now}
	if prev, err := repo.GetImportState(ctx, name); err == nil && prev != nil {
		state.LastSuccessAt = prev.LastSuccessAt
		state.StatsJSON = prev.StatsJSON
	}
	if runErr != nil {
		msg := runErr.Error()
		state.LastError = &msg
	} else {
		state.LastSuccessAt = &now
		if raw, err := json.Marshal(stats); err == nil {
			state.StatsJSON = datatypes.JSON(raw)
		}
	}
	return repo.UpsertImportState(ctx, state)
}
