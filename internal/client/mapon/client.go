// Package mapon is the HTTP client for the Mapon unit-list feed: a nested
// JSON document where each unit carries its position, an update timestamp and
// the states of the machine's digital inputs.
package mapon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Payload struct {
	Data struct {
		Units []Unit `json:"units"`
	} `json:"data"`
}

type Unit struct {
	UnitID json.Number `json:"unit_id"`
	// LastUpdate is UTC, "2006-01-02T15:04:05Z".
	LastUpdate string     `json:"last_update"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	IODin      []DinState `json:"io_din"`
}

// DinState is one digital input: the attached implement's label and whether
// it is currently engaged.
type DinState struct {
	Label string `json:"label"`
	State int    `json:"state"`
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

func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
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

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &payload, nil
}
