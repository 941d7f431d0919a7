package ports

import (
	"context"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// ProjectRepository persists saved planting projects. Ingested power-line
// geometry and proximity results are never stored; they are recomputed
// per session.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, limit, offset int) ([]domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id string) error
}
