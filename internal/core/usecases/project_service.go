package usecases

import (
	"context"
	"fmt"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/ports"
)

// ProjectService handles saved-project business logic.
type ProjectService struct {
	projects ports.ProjectRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects ports.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

// Create validates and stores a new project. The repository assigns the id.
func (s *ProjectService) Create(ctx context.Context, project *domain.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	return s.projects.Create(ctx, project)
}

// Get returns a single project.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("project id must not be empty")
	}
	return s.projects.GetByID(ctx, id)
}

// List returns stored projects, newest first.
func (s *ProjectService) List(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.projects.List(ctx, limit, offset)
}

// Update replaces a stored project wholesale.
func (s *ProjectService) Update(ctx context.Context, project *domain.Project) error {
	if project.ID == "" {
		return fmt.Errorf("project id must not be empty")
	}
	if err := validateProject(project); err != nil {
		return err
	}
	return s.projects.Update(ctx, project)
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("project id must not be empty")
	}
	return s.projects.Delete(ctx, id)
}

func validateProject(p *domain.Project) error {
	if p == nil {
		return fmt.Errorf("project must not be nil")
	}
	if p.Name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	for _, t := range p.Trees {
		if t.HeightM < 0 {
			return fmt.Errorf("tree %s: height must not be negative", t.ID)
		}
		if t.CrownWidthM < 0 {
			return fmt.Errorf("tree %s: crown width must not be negative", t.ID)
		}
		if t.Location.Lat < -90 || t.Location.Lat > 90 ||
			t.Location.Lng < -180 || t.Location.Lng > 180 {
			return fmt.Errorf("tree %s: location out of range", t.ID)
		}
	}
	return nil
}
