package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/contact"
)

var contactCols = []string{"id", "email", "email_hash", "name", "company", "tags_csv", "created_at", "updated_at"}

func TestContactRepo_GetWithGroups(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()

	mock.ExpectQuery("SELECT .+ FROM contacts WHERE id").WithArgs("k1").
		WillReturnRows(sqlmock.NewRows(contactCols).AddRow("k1", "enc:e", "h1", nil, nil, nil, at, at))
	mock.ExpectQuery("FROM group_memberships m").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"contact_id", "id", "name"}).
			AddRow("k1", "g1", "Customers").
			AddRow("k1", "g2", "VIP"))

	c, err := NewContactRepo(db).Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "h1", c.EmailHash)
	assert.Equal(t, []domain.GroupRef{{ID: "g1", Name: "Customers"}, {ID: "g2", Name: "VIP"}}, c.Groups)
}

func TestContactRepo_List(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()

	mock.ExpectQuery("SELECT .+ FROM contacts ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow("k2", "enc:b", "h2", nil, nil, nil, at, at).
			AddRow("k1", "enc:a", "h1", "enc:n", nil, nil, at, at))
	mock.ExpectQuery("FROM group_memberships m").
		WillReturnRows(sqlmock.NewRows([]string{"contact_id", "id", "name"}).AddRow("k1", "g1", "Customers"))

	list, err := NewContactRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Empty(t, list[0].Groups)
	assert.Equal(t, []domain.GroupRef{{ID: "g1", Name: "Customers"}}, list[1].Groups)
}

func TestContactRepo_FindByLookupNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE email_hash = .+ OR email = ").WithArgs("h", "a@b.co").
		WillReturnRows(sqlmock.NewRows(contactCols))

	_, err := NewContactRepo(db).FindByLookup(context.Background(), "h", "a@b.co")
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestContactRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO contacts").WillReturnError(uniqueViolation)

	err := NewContactRepo(db).Create(context.Background(), &domain.Contact{ID: "k1", Email: "enc:e", EmailHash: "h"})
	assert.ErrorIs(t, err, contact.ErrDuplicateEmail)
}

func TestContactRepo_UpdateNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE contacts").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewContactRepo(db).Update(context.Background(), &domain.Contact{ID: "k1", Email: "enc:e", EmailHash: "h"})
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestContactRepo_AddToGroupIgnoresExisting(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO group_memberships .+ ON CONFLICT").
		WithArgs(sqlmock.AnyArg(), "g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewContactRepo(db).AddToGroup(context.Background(), "k1", "g1"))
}

func TestContactRepo_DeleteMany(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("DELETE FROM contacts WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewContactRepo(db).DeleteMany(context.Background(), []string{"k1", "k2", "k3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
