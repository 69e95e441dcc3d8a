package userrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/repository/userrepo"
)

func TestSave_DuplicateEmail_IsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := userrepo.NewUserRepository(db, time.Second, logger.NewNop())

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = repo.Save(context.Background(), domain.User{Email: "A@B.kz", PasswordHash: "h", Role: domain.RoleSeller})

	assert.IsType(t, &apperror.ConflictError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_LowercasesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := userrepo.NewUserRepository(db, time.Second, logger.NewNop())

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "a@b.kz", "h", "seller", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Save(context.Background(), domain.User{Email: "A@B.kz", PasswordHash: "h", Role: domain.RoleSeller})

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "a@b.kz", user.Email)
}

func TestFindByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := userrepo.NewUserRepository(db, time.Second, logger.NewNop())

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("x@y.kz").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at", "updated_at"}))

	_, err = repo.FindByEmail(context.Background(), "X@y.kz")

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestFindByID_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := userrepo.NewUserRepository(db, time.Second, logger.NewNop())
	id := "4f5c8f4e-1d7b-4c39-9a51-7e4f0f1d2b3a"
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(id, "a@b.kz", "h", "builder", now, now))

	user, err := repo.FindByID(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, domain.RoleBuilder, user.Role)
}
