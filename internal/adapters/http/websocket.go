package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/pkg/geospatial"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds or to
// report a viewport change.
type wsMessage struct {
	Action  string              `json:"action"`  // "subscribe" | "unsubscribe" | "viewport"
	Channel string              `json:"channel"` // "ingests" | "warnings" (default: warnings)
	Bounds  *domain.BoundingBox `json:"bounds,omitempty"`
	Center  *domain.GeoPoint    `json:"center,omitempty"`
	RadiusM float64             `json:"radius_m,omitempty"`
	Zoom    float64             `json:"zoom,omitempty"`
}

// wsSubject maps a client channel name to its NATS subject.
func wsSubject(channel string) (string, error) {
	switch channel {
	case "", "warnings":
		return "canopyviz.proximity.warning", nil
	case "ingests":
		return "canopyviz.powerlines.ingested", nil
	}
	return "", errors.New("unknown channel: " + channel)
}

// wsViewportBounds extracts the viewport from a message: explicit bounds
// win, otherwise a center point plus radius is expanded into a box.
func wsViewportBounds(m wsMessage) (domain.BoundingBox, error) {
	if m.Bounds != nil {
		return *m.Bounds, nil
	}
	if m.Center != nil && m.RadiusM > 0 {
		minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(m.Center.Lat, m.Center.Lng, m.RadiusM)
		return domain.BoundingBox{South: minLat, West: minLon, North: maxLat, East: maxLon}, nil
	}
	return domain.BoundingBox{}, errors.New("viewport requires bounds or center and radius_m")
}

// WebSocketHandler returns a handler that upgrades to WebSocket,
// relays real-time NATS events to connected clients, and streams
// power-line collections for viewport changes.
// Clients send JSON: {"action":"subscribe","channel":"ingests"} or
// {"action":"viewport","bounds":{...},"zoom":15}.
// Default channel is "warnings".
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		nc := deps.NATS
		remoteAddr := c.RemoteAddr().String()
		log.Printf("ws client connected: %s", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Auto-subscribe to proximity warnings by default. The broker is
		// optional at boot, so nc can be nil; the connection stays usable
		// for viewport streaming.
		if nc != nil {
			defaultSubject := "canopyviz.proximity.warning"
			sub, err := nc.Subscribe(defaultSubject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				log.Printf("ws default subscribe error: %v", err)
				return
			}
			subs[defaultSubject] = sub
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Action == "viewport" {
				bounds, err := wsViewportBounds(m)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				deps.PowerLines.OnViewportChange(ctx, bounds, m.Zoom, func(fc domain.FeatureCollection) {
					_ = writeJSON(map[string]interface{}{
						"type":      "powerlines",
						"cache_key": bounds.CacheKey(),
						"count":     len(fc.Features),
						"features":  fc.Features,
					})
				})
				continue
			}

			subject, err := wsSubject(m.Channel)
			if err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				continue
			}

			switch m.Action {
			case "subscribe":
				if nc == nil {
					_ = writeJSON(map[string]string{"error": "event broker unavailable"})
					continue
				}
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Printf("ws client disconnected: %s", remoteAddr)
	}
}
