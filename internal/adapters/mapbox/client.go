package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// DefaultURL is the Mapbox forward-geocoding endpoint.
const DefaultURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements ports.GeocodingService against the Mapbox API.
// A missing access token is a boundary precondition, checked at
// construction rather than handled downstream.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a Mapbox geocoding client.
func New(endpoint, token string, timeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, errors.New("mapbox: access token is required")
	}
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type geocodeResponse struct {
	Features []struct {
		PlaceName string     `json:"place_name"`
		Center    [2]float64 `json:"center"` // [lng, lat]
	} `json:"features"`
}

// Search returns ranked place candidates for free text.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("limit", strconv.Itoa(limit))

	u := fmt.Sprintf("%s/%s.json?%s", c.endpoint, url.PathEscape(query), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: mapbox returned %d", resp.StatusCode)
	}

	var parsed geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("geocode decode: %w", err)
	}

	places := make([]domain.Place, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		places = append(places, domain.Place{
			Name:   f.PlaceName,
			Center: domain.GeoPoint{Lng: f.Center[0], Lat: f.Center[1]},
		})
	}
	return places, nil
}
