package ports

import (
	"context"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// PowerLineSource fetches overhead power infrastructure for a viewport.
// Implementations never return an error: any transport or parse failure
// degrades to an empty collection so a viewport pan cannot crash.
type PowerLineSource interface {
	Fetch(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection
}

// GeocodingService turns free text into ranked place candidates.
type GeocodingService interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishIngest(ctx context.Context, event *domain.IngestEvent) error
	PublishWarning(ctx context.Context, warning *domain.ProximityWarning) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeIngests(ctx context.Context, handler func(ctx context.Context, event *domain.IngestEvent) error) error
}

// CacheService provides read-through caching for collaborator responses
// (geocoding). The viewport feature cache is not behind this interface:
// it is in-process by design, exact-match, and never evicted.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
