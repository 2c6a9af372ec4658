package importer

import (
	"context"
	"fmt"
	"time"

	"streetmaint/internal/client/kuntoturku"
	"streetmaint/internal/config"
)

// kuntoTurkuEventMapping translates KuntoTurku work-event labels to canonical
// identifiers. Labels mapped to "" are known but irrelevant (transfer driving,
// test runs and the like) and are dropped silently.
var kuntoTurkuEventMapping = map[string]string{
	"Auraus":                "au",
	"Hiekoitus":             "hi",
	"Hiekoitus 1":           "hi",
	"Hiekoitushiekan poisto": "hn",
	"Huoltoajo1":            "",
	"Huoltoajo2":            "",
	"Höyläys":               "hs",
	"Lakaisu1":              "hj",
	"Lakaisu2":              "hj",
	"Lakaisu3":              "hj",
	"Lakaisu4":              "hj",
	"Lehtien keruu":         "",
	"Lehtien murskaus":      "",
	"Maalaus1":              "",
	"Maalaus2":              "",
	"Maalaus3":              "",
	"Maalaus4":              "",
	"Nostintyö":             "",
	"Pesu":                  "pe",
	"pesu1":                 "pe",
	"Polanteen poisto":      "",
	"Roskien keruu1":        "",
	"Roskien keruu2":        "",
	"Roskien keruu3":        "",
	"Roskien keruu4":        "",
	"siirtymäajo":           "",
	"Siirtymäajo":           "",
	"Sorastus":              "",
	"Suolaus":               "su",
	"SyväSuolaus":           "su",
	"Testiajo":              "",
	"Testiajo2":             "",
	"työajo":                "",
	"Työajo":                "",
	"Virheralueiden hoito":  "",
	"Ylläpito":              "",
	"Ylläpitotyöt":          "",
}

const kuntoTurkuTimeLayout = "2006-01-02 15:04:05"

// KuntoTurkuImporter ingests the flat per-machine array feed. Feed timestamps
// are zone-less and interpreted in the server's local zone.
type KuntoTurkuImporter struct {
	base
	client *kuntoturku.Client
}

func NewKuntoTurku(ctx context.Context, deps Deps, cfg config.ImporterConfig) (Importer, error) {
	b, err := newBase(ctx, "kuntoturku", "KuntoTurku", deps, cfg, kuntoTurkuEventMapping)
	if err != nil {
		return nil, err
	}
	return &KuntoTurkuImporter{
		base:   b,
		client: kuntoturku.New(cfg.URL, b.fetchTimeout()),
	}, nil
}

func (i *KuntoTurkuImporter) Run(ctx context.Context) (Stats, error) {
	data, err := i.client.Fetch(ctx)
	if err != nil {
		return Stats{}, err
	}

	records, ignored, err := i.normalize(data)
	if err != nil {
		return Stats{}, err
	}

	created, err := i.apply(ctx, records)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(data), NewLocations: created, Ignored: ignored}
	i.logStats(stats)
	return stats, nil
}

func (i *KuntoTurkuImporter) normalize(data []kuntoturku.VehicleDatum) ([]Record, int, error) {
	records := make([]Record, 0, len(data))
	ignored := 0

	for _, datum := range data {
		events := i.mapEvents(datum.LastLocation.Events)
		if len(events) == 0 && i.dropEventless {
			ignored++
			continue
		}

		timestamp, err := time.ParseInLocation(kuntoTurkuTimeLayout, datum.LastLocation.Timestamp, time.Local)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing timestamp %q: %w", datum.LastLocation.Timestamp, err)
		}

		var lon, lat float64
		if _, err := fmt.Sscanf(datum.LastLocation.Coords, "(%f %f)", &lon, &lat); err != nil {
			return nil, 0, fmt.Errorf("parsing coords %q: %w", datum.LastLocation.Coords, err)
		}

		records = append(records, Record{
			OriginID:     datum.ID.String(),
			Timestamp:    timestamp,
			Lon:          lon,
			Lat:          lat,
			EventTypeIDs: events,
		})
	}
	return records, ignored, nil
}
