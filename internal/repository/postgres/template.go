package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/template"
)

// TemplateRepo implements template.Repository against PostgreSQL.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `id, name, description, subject, html, design_json, created_at, updated_at`

func scanTemplate(row rowScanner) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Subject, &t.HTML, &t.DesignJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM email_templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []domain.EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Get(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM email_templates WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM email_templates WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup template: %w", err)
	}
	return exists, nil
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.EmailTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_templates (id, name, description, subject, html, design_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Description, t.Subject, t.HTML, t.DesignJSON, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.EmailTemplate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_templates
		SET name = $2, description = $3, subject = $4, html = $5, design_json = $6, updated_at = $7
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Subject, t.HTML, t.DesignJSON, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return affected(res, template.ErrNotFound)
}

func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return affected(res, template.ErrNotFound)
}
