package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, email, COALESCE(email_hash, ''), name, company, tags_csv, created_at, updated_at`

func scanContact(row rowScanner) (*domain.Contact, error) {
	c := &domain.Contact{}
	if err := row.Scan(&c.ID, &c.Email, &c.EmailHash, &c.Name, &c.Company, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	groups, err := r.groupsOf(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Groups = groups[out[i].ID]
	}
	return out, nil
}

// groupsOf returns group refs keyed by contact ID, for the given contacts
// or for every contact when ids is nil.
func (r *ContactRepo) groupsOf(ctx context.Context, ids []string) (map[string][]domain.GroupRef, error) {
	q := `
		SELECT m.contact_id, g.id, g.name
		FROM group_memberships m
		JOIN contact_groups g ON g.id = m.group_id`
	var args []any
	if ids != nil {
		q += ` WHERE m.contact_id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	q += ` ORDER BY g.name ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := map[string][]domain.GroupRef{}
	for rows.Next() {
		var contactID string
		var g domain.GroupRef
		if err := rows.Scan(&contactID, &g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out[contactID] = append(out[contactID], g)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	groups, err := r.groupsOf(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	c.Groups = groups[id]
	return c, nil
}

func (r *ContactRepo) FindByLookup(ctx context.Context, hash, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email_hash = $1 OR email = $2 LIMIT 1`, hash, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, email, email_hash, name, company, tags_csv, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Email, nullIfEmpty(c.EmailHash), c.Name, c.Company, c.Tags, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return contact.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET email = $2, email_hash = $3, name = $4, company = $5, tags_csv = $6, updated_at = $7
		WHERE id = $1`,
		c.ID, c.Email, nullIfEmpty(c.EmailHash), c.Name, c.Company, c.Tags, c.UpdatedAt)
	if isUniqueViolation(err) {
		return contact.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return affected(res, contact.ErrNotFound)
}

func (r *ContactRepo) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM contact_groups WHERE id = $1)`, groupID).Scan(&exists)
	return exists, err
}

func (r *ContactRepo) AddToGroup(ctx context.Context, contactID, groupID string) error {
	return addMembers(ctx, r.db, groupID, []string{contactID})
}

// addMembers inserts memberships, leaving existing pairs untouched.
func addMembers(ctx context.Context, q queryer, groupID string, contactIDs []string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO group_memberships (contact_id, group_id, created_at)
		SELECT unnest($1::text[]), $2, NOW()
		ON CONFLICT (contact_id, group_id) DO NOTHING`, pq.Array(contactIDs), groupID)
	if err != nil {
		return fmt.Errorf("add memberships: %w", err)
	}
	return nil
}

func (r *ContactRepo) DeleteMany(ctx context.Context, ids []string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete contacts: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ContactRepo) ListRecipientEmails(ctx context.Context) ([]contact.RecipientEmail, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email FROM campaign_recipients`)
	if err != nil {
		return nil, fmt.Errorf("list recipient emails: %w", err)
	}
	defer rows.Close()
	var out []contact.RecipientEmail
	for rows.Next() {
		var re contact.RecipientEmail
		if err := rows.Scan(&re.ID, &re.Email); err != nil {
			return nil, fmt.Errorf("scan recipient email: %w", err)
		}
		out = append(out, re)
	}
	return out, rows.Err()
}

func (r *ContactRepo) UpdateRecipientEmail(ctx context.Context, id, email string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE campaign_recipients SET email = $2 WHERE id = $1`, id, email); err != nil {
		return fmt.Errorf("update recipient email: %w", err)
	}
	return nil
}
