package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"medinexa/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUser(email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           uuid.New(),
		Name:         "Test Patient",
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuN7sYqBqbEi8oY0TPR5r3rW8nqM1H0a.",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Feature: patient-accounts, Property 1: Registration stores hashed passwords
func TestProperty_RegistrationStoresHashedPasswords(t *testing.T) {
	db := requireDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)
	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, name string) bool {
			_, _ = db.Exec("DELETE FROM users WHERE email = $1", email)
			defer db.Exec("DELETE FROM users WHERE email = $1", email)

			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
			if err != nil {
				return false
			}

			user := newUser(email)
			user.Name = name
			user.PasswordHash = string(hashed)
			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			stored, err := repo.FindByEmail(ctx, email)
			if err != nil {
				return false
			}
			return stored.PasswordHash != password &&
				bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)) == nil &&
				stored.Name == name
		},
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15} [A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	requireDB(t)
	truncate(t, "users")
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("dup@example.com")))
	err := repo.Create(ctx, newUser("dup@example.com"))

	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestUserRepository_FindByID(t *testing.T) {
	requireDB(t)
	truncate(t, "users")
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := newUser("find@example.com")
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)
	assert.Equal(t, domain.RoleUser, found.Role)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_List(t *testing.T) {
	requireDB(t)
	truncate(t, "users")
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	older := newUser("older@example.com")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newUser("newer@example.com")))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "newer@example.com", users[0].Email)
	assert.True(t, strings.HasPrefix(users[1].Email, "older"))
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	requireDB(t)
	truncate(t, "users", "sessions")
	users := NewUserRepository(testDB)
	sessions := NewSessionRepository(testDB)
	ctx := context.Background()

	user := newUser("session@example.com")
	require.NoError(t, users.Create(ctx, user))

	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, sessions.Create(ctx, session))

	found, err := sessions.FindByToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)

	require.NoError(t, sessions.Revoke(ctx, session.Token))
	_, err = sessions.FindByToken(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.ErrorIs(t, sessions.Revoke(ctx, "unknown"), ErrSessionNotFound)
	_, err = sessions.FindByToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
