package importer

import (
	"context"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"streetmaint/internal/client/gtfsrt"
	"streetmaint/internal/config"
)

// GTFSRTImporter ingests a GTFS-Realtime VehiclePositions feed. GTFS-RT has
// no maintenance-event vocabulary, so every record is eventless and the
// drop-eventless behavior is forced off for this source.
type GTFSRTImporter struct {
	base
	client *gtfsrt.Client
}

func NewGTFSRT(ctx context.Context, deps Deps, cfg config.ImporterConfig) (Importer, error) {
	b, err := newBase(ctx, "gtfsrt", "GTFS-RT", deps, cfg, nil)
	if err != nil {
		return nil, err
	}
	b.dropEventless = false
	return &GTFSRTImporter{
		base:   b,
		client: gtfsrt.New(cfg.URL, b.fetchTimeout()),
	}, nil
}

func (i *GTFSRTImporter) Run(ctx context.Context) (Stats, error) {
	feed, err := i.client.Fetch(ctx)
	if err != nil {
		return Stats{}, err
	}

	records := i.normalize(feed)

	created, err := i.apply(ctx, records)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(feed.Entity), NewLocations: created}
	i.logStats(stats)
	return stats, nil
}

func (i *GTFSRTImporter) normalize(feed *gtfs.FeedMessage) []Record {
	var headerTS time.Time
	if feed.Header != nil && feed.Header.Timestamp != nil {
		headerTS = time.Unix(int64(*feed.Header.Timestamp), 0).UTC()
	}

	records := make([]Record, 0, len(feed.Entity))
	for _, ent := range feed.Entity {
		if ent == nil || ent.Vehicle == nil {
			continue
		}
		vp := ent.Vehicle
		if vp.Vehicle == nil || vp.Vehicle.Id == nil || *vp.Vehicle.Id == "" || vp.Position == nil {
			continue
		}
		if vp.Position.Latitude == nil || vp.Position.Longitude == nil {
			continue
		}

		timestamp := headerTS
		if vp.Timestamp != nil && *vp.Timestamp > 0 {
			timestamp = time.Unix(int64(*vp.Timestamp), 0).UTC()
		}
		if timestamp.IsZero() {
			continue
		}

		records = append(records, Record{
			OriginID:  *vp.Vehicle.Id,
			Timestamp: timestamp,
			Lon:       float64(*vp.Position.Longitude),
			Lat:       float64(*vp.Position.Latitude),
		})
	}
	return records
}
