package accesscontrol

import (
	"context"
	"errors"
	"testing"

	"nightmap/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Moderator ")
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, r)

	_, err = ParseRole("owner")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		role        Role
		adjudicate  bool
		manageRoles bool
	}{
		{RoleAdmin, true, true},
		{RoleModerator, true, false},
		{RoleUser, false, false},
		{Role(""), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.adjudicate, tt.role.CanAdjudicate())
			assert.Equal(t, tt.manageRoles, tt.role.CanManageRoles())
		})
	}
}

func TestRepositoryGetRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT role FROM profiles`).WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("moderator"))
	role, err := repo.GetRole(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, role)

	mock.ExpectQuery(`SELECT role FROM profiles`).WillReturnRows(pgxmock.NewRows([]string{"role"}))
	_, err = repo.GetRole(context.Background(), id)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)

	mock.ExpectExec(`UPDATE profiles`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = repo.SetRole(context.Background(), uuid.New(), RoleAdmin)
	assert.True(t, errors.Is(err, ErrProfileNotFound))

	err = repo.SetRole(context.Background(), uuid.New(), Role("superuser"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	assert.NoError(t, mock.ExpectationsWereMet())
}
