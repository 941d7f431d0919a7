package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/ports"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
)

// GeocodeService proxies the geocoding collaborator with a read-through
// cache. Place names change rarely, so results are cached for a day.
type GeocodeService struct {
	geocoder ports.GeocodingService
	cache    ports.CacheService
}

// NewGeocodeService creates a new GeocodeService. cache may be nil.
func NewGeocodeService(geocoder ports.GeocodingService, cache ports.CacheService) *GeocodeService {
	return &GeocodeService{geocoder: geocoder, cache: cache}
}

// Search returns ranked place candidates for free-text input.
func (s *GeocodeService) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	if s.geocoder == nil {
		return nil, fmt.Errorf("geocoding is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	cacheKey := fmt.Sprintf("geocode:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	places, err := s.geocoder.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	// Cache for 24 hours
	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 86400)
		}
	}

	return places, nil
}
