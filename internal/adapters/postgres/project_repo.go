package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// ProjectRepo implements ports.ProjectRepository. Trees, settings and the
// camera pose are stored as JSONB documents; only the project envelope is
// relational.
type ProjectRepo struct {
	db *DB
}

func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	trees, settings, camera, err := marshalProject(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO projects (name, trees, settings, camera, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, p.Name, trees, settings, camera, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var (
		p                      domain.Project
		trees, settings, camera []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, trees, settings, camera, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &trees, &settings, &camera, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalProject(&p, trees, settings, camera); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) List(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, trees, settings, camera, created_at, updated_at
		FROM projects ORDER BY updated_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var (
			p                      domain.Project
			trees, settings, camera []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &trees, &settings, &camera,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalProject(&p, trees, settings, camera); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	trees, settings, camera, err := marshalProject(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE projects
		SET name = $2, trees = $3, settings = $4, camera = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, trees, settings, camera, now)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s not found", p.ID)
	}
	p.UpdatedAt = now
	return nil
}

func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s not found", id)
	}
	return nil
}

func marshalProject(p *domain.Project) (trees, settings, camera []byte, err error) {
	if trees, err = json.Marshal(p.Trees); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal trees: %w", err)
	}
	if p.Settings == nil {
		settings = []byte("{}")
	} else if settings, err = json.Marshal(p.Settings); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal settings: %w", err)
	}
	if camera, err = json.Marshal(p.Camera); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal camera: %w", err)
	}
	return trees, settings, camera, nil
}

func unmarshalProject(p *domain.Project, trees, settings, camera []byte) error {
	if len(trees) > 0 {
		if err := json.Unmarshal(trees, &p.Trees); err != nil {
			return fmt.Errorf("unmarshal trees: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	if len(camera) > 0 {
		if err := json.Unmarshal(camera, &p.Camera); err != nil {
			return fmt.Errorf("unmarshal camera: %w", err)
		}
	}
	return nil
}
