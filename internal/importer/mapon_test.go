package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"streetmaint/internal/config"
)

func TestMaponRun_ParsesUnitsAndFiltersStale(t *testing.T) {
	repo := newStubRepo()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := now.Add(-30 * time.Second).Format(maponTimeLayout)
	stale := now.Add(-2 * time.Minute).Format(maponTimeLayout)
	body := fmt.Sprintf(`{"data": {"units": [
		{"unit_id": 100, "last_update": %q, "lat": 60.45, "lng": 22.24,
			"io_din": [{"label": "Auraus", "state": 1}, {"label": "LAKAISU", "state": 0}]},
		{"unit_id": 200, "last_update": %q, "lat": 60.50, "lng": 22.30,
			"io_din": [{"label": "HIEKOITUS", "state": 1}]}
	]}}`, fresh, stale)
	srv := serveJSON(t, &body)

	deps := testDeps(repo, true)
	deps.Now = func() time.Time { return now }
	deps.Tracker.Now = deps.Now
	imp, err := NewMapon(context.Background(), deps, config.ImporterConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewMapon: %v", err)
	}

	stats, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 2 || stats.NewLocations != 1 {
		t.Fatalf("stats=%+v want total=2 new=1", stats)
	}

	// Only the fresh unit lands, with just its engaged input mapped.
	v := repo.findVehicle("mapon", "100")
	if v == nil {
		t.Fatalf("vehicle 100 not created")
	}
	locs := repo.vehicleLocations(v.ID)
	if len(locs) != 1 {
		t.Fatalf("locations=%d want=1", len(locs))
	}
	if locs[0].Lon != 22.24 || locs[0].Lat != 60.45 {
		t.Fatalf("coords=(%v %v) want=(22.24 60.45)", locs[0].Lon, locs[0].Lat)
	}
	if got := repo.events[locs[0].ID]; len(got) != 1 || got[0] != testEventIndex()["au"] {
		t.Fatalf("events=%v want=[au row]", got)
	}
	if repo.findVehicle("mapon", "200") != nil {
		t.Fatalf("stale unit must be skipped")
	}

	// Thirty seconds old is inside the visibility window: withheld for now.
	if v.LastLocationID != nil {
		t.Fatalf("pointer=%v want nil inside the window", v.LastLocationID)
	}
	if v.PointerUpToDate {
		t.Fatalf("pointer should be flagged for recompute")
	}
}

func TestMaponRun_DisengagedInputsAreEventless(t *testing.T) {
	repo := newStubRepo()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	body := fmt.Sprintf(`{"data": {"units": [
		{"unit_id": 300, "last_update": %q, "lat": 60.45, "lng": 22.24,
			"io_din": [{"label": "Auraus", "state": 0}]}
	]}}`, now.Add(-10*time.Second).Format(maponTimeLayout))
	srv := serveJSON(t, &body)

	deps := testDeps(repo, true)
	deps.Now = func() time.Time { return now }
	imp, err := NewMapon(context.Background(), deps, config.ImporterConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewMapon: %v", err)
	}

	stats, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.NewLocations != 0 || stats.Ignored != 1 {
		t.Fatalf("stats=%+v want new=0 ignored=1", stats)
	}
}
