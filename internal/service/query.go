package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	naturaldate "github.com/tj/go-naturaldate"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// ParamError is a client input error: an unparseable query parameter. It is
// reported as a rejected request, never as a partial result.
type ParamError struct {
	Param string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid value for %s parameter", e.Param)
}

// QueryParams are the recognized, already-validated query parameters.
// Integer zero means "not given", matching the feed API's historical
// treatment of falsy values.
type QueryParams struct {
	Since              *time.Time
	Limit              int
	History            int
	TemporalResolution int
}

type LocationView struct {
	Timestamp time.Time  `json:"timestamp"`
	Coords    [2]float64 `json:"coords"`
	Events    []string   `json:"events"`
}

type VehicleView struct {
	ID              uint64         `json:"id"`
	LastLocation    *LocationView  `json:"last_location"`
	LocationHistory []LocationView `json:"location_history"`
}

// VehicleQueryService answers the two read shapes: a capped vehicle list with
// current visible locations only, and a single vehicle with bounded history.
type VehicleQueryService struct {
	Repo         repository.Repository
	DefaultLimit int

	// Zone is the zone used both to interpret zone-less since values and to
	// render timestamps. Defaults to the server's local zone.
	Zone *time.Location

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *VehicleQueryService) zone() *time.Location {
	if s.Zone != nil {
		return s.Zone
	}
	return time.Local
}

func (s *VehicleQueryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *VehicleQueryService) defaultLimit() int {
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	return 10
}

// ParseParams validates the supported query parameters. since accepts an
// absolute timestamp (server zone assumed when none given) or a relative
// expression such as "2 years ago".
func (s *VehicleQueryService) ParseParams(values url.Values) (QueryParams, error) {
	var params QueryParams

	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := s.parseSince(raw)
		if err != nil {
			return QueryParams{}, &ParamError{Param: "since"}
		}
		params.Since = &since
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &params.Limit},
		{"history", &params.History},
		{"temporal_resolution", &params.TemporalResolution},
	} {
		raw := strings.TrimSpace(values.Get(p.name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return QueryParams{}, &ParamError{Param: p.name}
		}
		*p.dst = value
	}

	return params, nil
}

func (s *VehicleQueryService) parseSince(raw string) (time.Time, error) {
	if t, err := dateparse.ParseIn(raw, s.zone()); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(raw, s.now().In(s.zone()), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// List returns vehicles with a visible location, most recently visible first,
// filtered by since and capped at limit. History is always empty in list
// form.
func (s *VehicleQueryService) List(ctx context.Context, params QueryParams) ([]VehicleView, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = s.defaultLimit()
	}

	vehicles, err := s.Repo.ListVehicles(ctx, repository.ListVehiclesParams{
		Since: params.Since,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	locationIDs := make([]uint64, 0, len(vehicles))
	for i := range vehicles {
		if vehicles[i].LastLocation != nil {
			locationIDs = append(locationIDs, vehicles[i].LastLocation.ID)
		}
	}
	events, err := s.Repo.EventIdentifiersByLocationIDs(ctx, locationIDs)
	if err != nil {
		return nil, err
	}

	views := make([]VehicleView, 0, len(vehicles))
	for i := range vehicles {
		views = append(views, VehicleView{
			ID:              vehicles[i].ID,
			LastLocation:    s.locationView(vehicles[i].LastLocation, events),
			LocationHistory: []LocationView{},
		})
	}
	return views, nil
}

// Detail returns one vehicle with its visible location and, when since or
// history is given, a bounded history. Returns nil when the vehicle does not
// exist.
//
// History candidates never include a location more recent than the visible
// one; they are capped to the most recent `history` entries and returned
// oldest-first, downsampled at temporal_resolution seconds.
func (s *VehicleQueryService) Detail(ctx context.Context, id uint64, params QueryParams) (*VehicleView, error) {
	vehicle, err := s.Repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, nil
	}

	history := []models.Location{}
	wantHistory := params.Since != nil || params.History > 0
	if wantHistory && vehicle.LastLocation != nil {
		history, err = s.Repo.ListLocations(ctx, repository.ListLocationsParams{
			VehicleID: vehicle.ID,
			Before:    &vehicle.LastLocation.Timestamp,
			Since:     params.Since,
			Limit:     params.History,
		})
		if err != nil {
			return nil, err
		}
	}

	locationIDs := make([]uint64, 0, len(history)+1)
	if vehicle.LastLocation != nil {
		locationIDs = append(locationIDs, vehicle.LastLocation.ID)
	}
	for i := range history {
		locationIDs = append(locationIDs, history[i].ID)
	}
	events, err := s.Repo.EventIdentifiersByLocationIDs(ctx, locationIDs)
	if err != nil {
		return nil, err
	}

	// history comes most-recent-first from the store; clients get it
	// oldest-first.
	historyViews := make([]LocationView, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		historyViews = append(historyViews, *s.locationView(&history[i], events))
	}
	if params.TemporalResolution > 0 {
		historyViews = downsample(historyViews, time.Duration(params.TemporalResolution)*time.Second)
	}

	return &VehicleView{
		ID:              vehicle.ID,
		LastLocation:    s.locationView(vehicle.LastLocation, events),
		LocationHistory: historyViews,
	}, nil
}

func (s *VehicleQueryService) locationView(loc *models.Location, events map[uint64][]string) *LocationView {
	if loc == nil {
		return nil
	}
	identifiers := events[loc.ID]
	if identifiers == nil {
		identifiers = []string{}
	}
	return &LocationView{
		Timestamp: loc.Timestamp.In(s.zone()),
		Coords:    [2]float64{loc.Lon, loc.Lat},
		Events:    identifiers,
	}
}

// downsample walks the ordered history keeping the first entry and then each
// entry at least resolution after the last kept one (greedy, keeps the
// earliest of each cluster).
func downsample(views []LocationView, resolution time.Duration) []LocationView {
	out := make([]LocationView, 0, len(views))
	for _, view := range views {
		if len(out) > 0 && view.Timestamp.Sub(out[len(out)-1].Timestamp) < resolution {
			continue
		}
		out = append(out, view)
	}
	return out
}
