package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/user"
)

var userCols = []string{"id", "username", "display_name", "email", "role", "enabled", "local_password_hash", "created_at", "updated_at"}

func TestUserRepo_FindEnabledByUsername(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()
	mock.ExpectQuery("FROM app_users WHERE username = .+ AND enabled = TRUE").WithArgs("jane").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "jane", "Jane", nil, "admin", true, "scrypt$aa$bb", at, at))

	u, err := NewUserRepo(db).FindEnabledByUsername(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.True(t, u.Enabled)
	assert.True(t, u.HasLocalPassword())
	assert.Nil(t, u.Email)
}

func TestUserRepo_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM app_users WHERE id").WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := NewUserRepo(db).Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUserRepo_ListOrder(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM app_users ORDER BY role ASC, username ASC").
		WillReturnRows(sqlmock.NewRows(userCols))

	users, err := NewUserRepo(db).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO app_users").WillReturnError(uniqueViolation)

	err := NewUserRepo(db).Create(context.Background(), &domain.AppUser{ID: "u1", Username: "jane", Role: domain.RoleViewer})
	assert.ErrorIs(t, err, user.ErrDuplicateUser)
}
