package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/group"
)

// GroupRepo implements group.Repository against PostgreSQL.
type GroupRepo struct{ db *sql.DB }

// NewGroupRepo creates a Postgres-backed group repository.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

const groupSelect = `
	SELECT g.id, g.name, g.description, g.created_at, g.updated_at, COUNT(m.contact_id)
	FROM contact_groups g
	LEFT JOIN group_memberships m ON m.group_id = g.id`

func scanGroup(row rowScanner) (*domain.ContactGroup, error) {
	g := &domain.ContactGroup{}
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]domain.ContactGroup, error) {
	rows, err := r.db.QueryContext(ctx, groupSelect+` GROUP BY g.id ORDER BY g.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	var out []domain.ContactGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*domain.ContactGroup, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, groupSelect+` WHERE g.id = $1 GROUP BY g.id`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, group.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func createGroup(ctx context.Context, q queryer, g *domain.ContactGroup) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO contact_groups (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`, g.ID, g.Name, g.Description, g.CreatedAt, g.UpdatedAt)
	if isUniqueViolation(err) {
		return group.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (r *GroupRepo) Create(ctx context.Context, g *domain.ContactGroup) error {
	return createGroup(ctx, r.db, g)
}

func (r *GroupRepo) Update(ctx context.Context, g *domain.ContactGroup) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contact_groups SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		g.ID, g.Name, g.Description, g.UpdatedAt)
	if isUniqueViolation(err) {
		return group.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return affected(res, group.ErrNotFound)
}

func (r *GroupRepo) ContactExists(ctx context.Context, contactID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM contacts WHERE id = $1)`, contactID).Scan(&exists)
	return exists, err
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, contactID string) error {
	return addMembers(ctx, r.db, groupID, []string{contactID})
}

func (r *GroupRepo) WithTx(ctx context.Context, fn func(tx group.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&groupTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// groupTx implements group.Tx on a *sql.Tx.
type groupTx struct{ tx *sql.Tx }

func (t *groupTx) MemberContactIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT contact_id FROM group_memberships WHERE group_id = $1 ORDER BY contact_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *groupTx) DeleteContacts(ctx context.Context, ids []string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func (t *groupTx) FindByName(ctx context.Context, name string) (*domain.ContactGroup, error) {
	g := &domain.ContactGroup{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM contact_groups WHERE name = $1`, name,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, group.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (t *groupTx) Create(ctx context.Context, g *domain.ContactGroup) error {
	return createGroup(ctx, t.tx, g)
}

func (t *groupTx) AddMembers(ctx context.Context, groupID string, contactIDs []string) error {
	return addMembers(ctx, t.tx, groupID, contactIDs)
}

func (t *groupTx) Delete(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM contact_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return affected(res, group.ErrNotFound)
}
