// Package stream fans visibility-pointer updates out to websocket
// subscribers, so clients can follow vehicles live without polling the list
// endpoint. Only locations that have already cleared the delay window are
// ever broadcast.
package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"streetmaint/internal/models"
)

// Update is one published pointer move.
type Update struct {
	VehicleID uint64     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Coords    [2]float64 `json:"coords"`
}

type Hub struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[chan Update]struct{}),
	}
}

// PointerUpdated implements tracker.Notifier. Slow subscribers drop updates
// rather than blocking ingestion.
func (h *Hub) PointerUpdated(vehicleID uint64, loc *models.Location) {
	if h == nil || loc == nil {
		return
	}
	update := Update{
		VehicleID: vehicleID,
		Timestamp: loc.Timestamp,
		Coords:    [2]float64{loc.Lon, loc.Lat},
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- update:
		default:
			if h.logger != nil {
				h.logger.Debug("dropping update for slow subscriber",
					zap.Uint64("vehicle_id", vehicleID))
			}
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	sub := make(chan Update, 16)
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
	return sub, cancel
}
