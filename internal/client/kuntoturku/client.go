// Package kuntoturku is the HTTP client for the KuntoTurku machine-tracking
// feed: a flat JSON array with one entry per machine, each carrying its most
// recent position and the active work events.
package kuntoturku

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type VehicleDatum struct {
	ID           json.Number   `json:"id"`
	MachineType  string        `json:"machine_type"`
	LastLocation LocationDatum `json:"last_location"`
}

type LocationDatum struct {
	// Timestamp is zone-less feed-local time, "2006-01-02 15:04:05".
	Timestamp string `json:"timestamp"`
	// Coords is a "(lon lat)" pair.
	Coords string   `json:"coords"`
	Events []string `json:"events"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Fetch(ctx context.Context) ([]VehicleDatum, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data []VehicleDatum
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return data, nil
}
