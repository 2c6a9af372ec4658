package importer

import (
	"context"
	"fmt"
	"time"

	"streetmaint/internal/client/mapon"
	"streetmaint/internal/config"
)

// maponEventMapping translates Mapon digital-input labels to canonical
// identifiers.
var maponEventMapping = map[string]string{
	"Liukkauden torjunta": "su",
	"LAKAISU":             "hj",
	"Auraus":              "au",
	"Etuaura":             "au",
	"HIEKOITUS":           "hi",
	"Höyläys":             "hs",
	"Sivuharja":           "hj",
}

const maponTimeLayout = "2006-01-02T15:04:05Z"

// maponUpdatedWindow is the "updated after" cutoff: units whose last update
// is older than this are already covered by a previous run and skipped.
const maponUpdatedWindow = time.Minute

// MaponImporter ingests the nested units feed. A unit's event set is derived
// from its engaged digital inputs; stale units are filtered by the update
// cutoff before anything else.
type MaponImporter struct {
	base
	client *mapon.Client
}

func NewMapon(ctx context.Context, deps Deps, cfg config.ImporterConfig) (Importer, error) {
	b, err := newBase(ctx, "mapon", "Mapon", deps, cfg, maponEventMapping)
	if err != nil {
		return nil, err
	}
	return &MaponImporter{
		base:   b,
		client: mapon.New(cfg.URL, b.fetchTimeout()),
	}, nil
}

func (i *MaponImporter) Run(ctx context.Context) (Stats, error) {
	payload, err := i.client.Fetch(ctx)
	if err != nil {
		return Stats{}, err
	}

	records, ignored, err := i.normalize(payload)
	if err != nil {
		return Stats{}, err
	}

	created, err := i.apply(ctx, records)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(payload.Data.Units), NewLocations: created, Ignored: ignored}
	i.logStats(stats)
	return stats, nil
}

func (i *MaponImporter) normalize(payload *mapon.Payload) ([]Record, int, error) {
	updatedAfter := i.now().Add(-maponUpdatedWindow)

	records := make([]Record, 0, len(payload.Data.Units))
	ignored := 0

	for _, unit := range payload.Data.Units {
		timestamp, err := time.Parse(maponTimeLayout, unit.LastUpdate)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing last_update %q: %w", unit.LastUpdate, err)
		}
		if !timestamp.After(updatedAfter) {
			continue
		}

		var labels []string
		for _, din := range unit.IODin {
			if din.State == 1 {
				labels = append(labels, din.Label)
			}
		}
		events := i.mapEvents(labels)
		if len(events) == 0 && i.dropEventless {
			ignored++
			continue
		}

		records = append(records, Record{
			OriginID:     unit.UnitID.String(),
			Timestamp:    timestamp,
			Lon:          unit.Lng,
			Lat:          unit.Lat,
			EventTypeIDs: events,
		})
	}
	return records, ignored, nil
}
