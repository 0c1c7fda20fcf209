package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/user"
)

// UserRepo implements user.Repository against PostgreSQL.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, display_name, email, role, enabled, local_password_hash, created_at, updated_at`

func scanUser(row rowScanner) (*domain.AppUser, error) {
	u := &domain.AppUser{}
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.Role, &u.Enabled,
		&u.LocalPasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.AppUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM app_users ORDER BY role ASC, username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []domain.AppUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.AppUser, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM app_users WHERE id = $1`, id)
}

func (r *UserRepo) FindEnabledByUsername(ctx context.Context, username string) (*domain.AppUser, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM app_users WHERE username = $1 AND enabled = TRUE`, username)
}

func (r *UserRepo) one(ctx context.Context, query string, arg any) (*domain.AppUser, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.AppUser) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_users
			(id, username, display_name, email, role, enabled, local_password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.DisplayName, u.Email, string(u.Role), u.Enabled, u.LocalPasswordHash, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.AppUser) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE app_users
		SET display_name = $2, email = $3, role = $4, enabled = $5, local_password_hash = $6, updated_at = $7
		WHERE id = $1`,
		u.ID, u.DisplayName, u.Email, string(u.Role), u.Enabled, u.LocalPasswordHash, u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return affected(res, user.ErrNotFound)
}
