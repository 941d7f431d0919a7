package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
)

// DefaultURL is the public Overpass API interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Client implements ports.PowerLineSource against an Overpass API
// endpoint. Failures never surface as errors: a viewport pan must not
// crash because the line data was unreachable, so every failure mode
// degrades to an empty collection. Callers treat that as "no known
// lines" — a conservative default that admits false negatives.
type Client struct {
	url             string
	httpClient      *http.Client
	queryTimeoutSec int
}

// New creates an Overpass client. queryTimeoutSec is the server-side
// execution timeout declared inside the query text.
func New(endpoint string, requestTimeout time.Duration, queryTimeoutSec int) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if queryTimeoutSec <= 0 {
		queryTimeoutSec = 15
	}
	return &Client{
		url:             endpoint,
		httpClient:      &http.Client{Timeout: requestTimeout},
		queryTimeoutSec: queryTimeoutSec,
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geometry"`
}

// Fetch issues exactly one Overpass query for the bounding box and
// normalizes the response into line features. No internal retries.
func (c *Client) Fetch(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
	metrics.OverpassFetches.Inc()
	t0 := time.Now()

	form := url.Values{}
	form.Set("data", c.buildQuery(bbox))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return c.failed("request", bbox, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failed("transport", bbox, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failed("status", bbox, fmt.Errorf("overpass returned %d", resp.StatusCode))
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return c.failed("decode", bbox, err)
	}

	fc := normalize(parsed)
	metrics.OverpassFetchDuration.Observe(time.Since(t0).Seconds())
	slog.Debug("overpass fetch complete",
		"cache_key", bbox.CacheKey(),
		"elements", len(parsed.Elements),
		"features", len(fc.Features),
		"duration_ms", time.Since(t0).Milliseconds(),
	)
	return fc
}

// buildQuery renders the Overpass QL request: the three overhead power
// categories restricted to the bbox, JSON output with way geometry, and
// the server-side execution timeout.
func (c *Client) buildQuery(bbox domain.BoundingBox) string {
	bounds := fmt.Sprintf("(%f,%f,%f,%f)", bbox.South, bbox.West, bbox.North, bbox.East)
	return fmt.Sprintf(
		`[out:json][timeout:%d];(way["power"="line"]%s;way["power"="minor_line"]%s;way["power"="cable"]%s;);out geom;`,
		c.queryTimeoutSec, bounds, bounds, bounds,
	)
}

// normalize keeps geometry-bearing ways with at least two coordinate
// pairs. Anything else is a data-quality artifact, dropped silently
// rather than reported as a fault.
func normalize(resp overpassResponse) domain.FeatureCollection {
	var features []domain.LineFeature
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			metrics.OverpassWaysDropped.Inc()
			continue
		}

		coords := make([]domain.GeoPoint, len(el.Geometry))
		for i, g := range el.Geometry {
			coords[i] = domain.GeoPoint{Lng: g.Lon, Lat: g.Lat}
		}

		features = append(features, domain.LineFeature{
			ID:          el.ID,
			PowerKind:   domain.PowerKind(el.Tags["power"]),
			Voltage:     el.Tags["voltage"],
			Operator:    el.Tags["operator"],
			CableCount:  el.Tags["cables"],
			Coordinates: coords,
		})
	}
	return domain.FeatureCollection{Features: features}
}

func (c *Client) failed(reason string, bbox domain.BoundingBox, err error) domain.FeatureCollection {
	metrics.OverpassFetchErrors.WithLabelValues(reason).Inc()
	slog.Warn("overpass fetch degraded to empty collection",
		"reason", reason,
		"cache_key", bbox.CacheKey(),
		"error", err,
	)
	return domain.FeatureCollection{}
}
