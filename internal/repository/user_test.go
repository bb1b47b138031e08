package repository

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"agora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedUser  *models.User
		expectedError bool
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "testuser", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser:  &models.User{ID: 1, Username: "testuser", Email: "test@example.com"},
			expectedError: false,
		},
		{
			name:   "Not Found",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(2, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedUser:  nil,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, http.StatusNotFound, models.StatusFor(err))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				assert.Equal(t, tt.expectedUser.Email, user.Email)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(1, 1).
		WillReturnError(errors.New("connection timeout"))

	user, err := repo.GetByID(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, models.StatusFor(err))
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "taken", Email: "taken@example.com"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, models.StatusFor(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateAlsoCreatesProfile(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice")

	require.NotNil(t, user.Profile)
	assert.NotZero(t, user.Profile.ID)
	assert.Equal(t, user.ID, user.Profile.UserID)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	createUser(t, db, "alice")

	err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "other@example.com"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, models.StatusFor(err))

	var profiles int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&profiles).Error)
	assert.Equal(t, int64(1), profiles, "failed registration must not leave a profile behind")
}

func TestUserRepository_LookupsAndAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := createUser(t, db, "bob")

	byName, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.Equal(t, http.StatusNotFound, models.StatusFor(err))

	require.NoError(t, repo.SetAdmin(ctx, user.ID, true))
	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "bob", admins[0].Username)

	assert.Equal(t, http.StatusNotFound, models.StatusFor(repo.SetAdmin(ctx, 999, true)))
}

func TestUserRepository_UpdateAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	createUser(t, db, "carol")
	dave := createUser(t, db, "dave")

	dave.FirstName = "Dave"
	dave.IsAdmin = true
	require.NoError(t, repo.UpdateAccount(ctx, dave))

	reloaded, err := repo.GetByID(ctx, dave.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dave", reloaded.FirstName)
	assert.False(t, reloaded.IsAdmin, "is_admin is not an account field")

	dave.Email = "carol@example.com"
	err = repo.UpdateAccount(ctx, dave)
	assert.Equal(t, http.StatusConflict, models.StatusFor(err))
}
