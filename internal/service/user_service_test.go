package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"medinexa/internal/domain"
	"medinexa/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:        "test-secret-key",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		AdminEmail:    "Admin@Medinexa.com",
		AdminPassword: "admin-pass",
	}
}

func newTestUserService() (UserService, *mockUserRepository, *mockSessionRepository) {
	userRepo := newMockUserRepository()
	sessionRepo := newMockSessionRepository()
	return NewUserService(userRepo, sessionRepo, testAuthConfig()), userRepo, sessionRepo
}

func fewerTests() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	return parameters
}

// Feature: patient-accounts, Property 1: Registration creates hashed passwords
func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(fewerTests())

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, name string) bool {
			service, userRepo, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, name, email, password)
			if err != nil {
				t.Logf("FAIL: Registration failed: %v", err)
				return false
			}

			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: Password hash does not match: %v", err)
				return false
			}

			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			return storedUser.PasswordHash == user.PasswordHash && storedUser.Role == domain.RoleUser
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15} [A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegister_Validation(t *testing.T) {
	service, userRepo, _ := newTestUserService()
	ctx := context.Background()

	_, err := service.Register(ctx, "Pat", "pat@example.com", "12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = service.Register(ctx, "  ", "pat@example.com", "123456")
	assert.ErrorIs(t, err, ErrNameRequired)

	user, err := service.Register(ctx, "Pat", "  Pat@Example.COM ", "123456")
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", user.Email)
	assert.Contains(t, userRepo.users, "pat@example.com")

	_, err = service.Register(ctx, "Pat Again", "PAT@example.com", "abcdef")
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	_, err := service.Register(ctx, "Pat", "pat@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = service.Login(ctx, "pat@example.com", "wrong-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := service.Login(ctx, "PAT@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, domain.RoleUser, session.Actor.Role)
}

// Feature: patient-accounts, Property 2: Access tokens carry the actor
func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(fewerTests())

	properties.Property("access tokens contain user ID, role, email and name claims", prop.ForAll(
		func(email string, password string, name string, role domain.Role) bool {
			service, userRepo, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, name, email, password)
			if err != nil {
				return false
			}
			user.Role = role
			userRepo.users[email] = user

			session, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(session.AccessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			actor := claims.Actor()
			return claims.UserID == user.ID.String() &&
				claims.Role == role &&
				actor.Email == email &&
				actor.Name == name &&
				claims.ExpiresAt != nil &&
				claims.IssuedAt != nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.OneConstOf(domain.RoleUser, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: patient-accounts, Property 3: Token refresh round trip
func TestProperty_TokenRefreshRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(fewerTests())

	properties.Property("valid refresh token returns new valid access token", prop.ForAll(
		func(email string, password string) bool {
			service, _, _ := newTestUserService()
			ctx := context.Background()

			if _, err := service.Register(ctx, "Pat Ient", email, password); err != nil {
				return false
			}

			session, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			refreshed, err := service.RefreshToken(ctx, session.RefreshToken)
			if err != nil {
				t.Logf("FAIL: Token refresh failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(refreshed.AccessToken)
			if err != nil {
				t.Logf("FAIL: New access token validation failed: %v", err)
				return false
			}

			return claims.UserID == session.Actor.ID &&
				claims.Role == session.Actor.Role &&
				time.Now().Before(claims.ExpiresAt.Time)
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: patient-accounts, Property 4: Logout invalidates the refresh session
func TestProperty_LogoutInvalidatesRefreshToken(t *testing.T) {
	properties := gopter.NewProperties(fewerTests())

	properties.Property("logout marks refresh session as revoked", prop.ForAll(
		func(email string, password string) bool {
			service, _, sessionRepo := newTestUserService()
			ctx := context.Background()

			if _, err := service.Register(ctx, "Pat Ient", email, password); err != nil {
				return false
			}

			session, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			if _, err := service.RefreshToken(ctx, session.RefreshToken); err != nil {
				t.Logf("FAIL: Refresh token should work before logout: %v", err)
				return false
			}

			if err := service.Logout(ctx, session.RefreshToken); err != nil {
				t.Logf("FAIL: Logout failed: %v", err)
				return false
			}

			_, err = service.RefreshToken(ctx, session.RefreshToken)
			if !errors.Is(err, ErrInvalidToken) {
				t.Logf("FAIL: Expected ErrInvalidToken, got: %v", err)
				return false
			}

			stored, err := sessionRepo.FindByToken(ctx, session.RefreshToken)
			return errors.Is(err, repository.ErrSessionRevoked) && stored == nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRefreshToken_Expired(t *testing.T) {
	service, _, sessionRepo := newTestUserService()
	ctx := context.Background()

	_, err := service.Register(ctx, "Pat", "pat@example.com", "123456")
	require.NoError(t, err)
	session, err := service.Login(ctx, "pat@example.com", "123456")
	require.NoError(t, err)

	sessionRepo.sessions[session.RefreshToken].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = service.RefreshToken(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = service.RefreshToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminLogin(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	session, err := service.AdminLogin(ctx, " admin@medinexa.com", "admin-pass")
	require.NoError(t, err)
	assert.Empty(t, session.RefreshToken)

	actor, err := service.ResolveActor(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, AdminActorID, actor.ID)
	assert.True(t, actor.IsAdmin())

	_, err = service.AdminLogin(ctx, "admin@medinexa.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := NewUserService(newMockUserRepository(), newMockSessionRepository(), AuthConfig{Secret: "s"})
	_, err = disabled.AdminLogin(ctx, "admin@medinexa.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_Rejects(t *testing.T) {
	service, _, _ := newTestUserService()

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewUserService(newMockUserRepository(), newMockSessionRepository(), AuthConfig{Secret: "other-secret"})
	_, err = other.Register(context.Background(), "Pat", "pat@example.com", "123456")
	require.NoError(t, err)
	session, err := other.Login(context.Background(), "pat@example.com", "123456")
	require.NoError(t, err)

	_, err = service.ValidateToken(session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	cfg := testAuthConfig()
	cfg.AccessTTL = time.Nanosecond
	short := NewUserService(newMockUserRepository(), newMockSessionRepository(), cfg)
	admin, err := short.AdminLogin(context.Background(), cfg.AdminEmail, cfg.AdminPassword)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = short.ValidateToken(admin.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_RejectsPaymentConfirmation(t *testing.T) {
	service, _, _ := newTestUserService()
	payments := NewPaymentService(testCatalog(), testAuthConfig().Secret, 0)

	confirmation, err := payments.Charge(context.Background(), patientActor("u1"), "semaglutide", "4242424242424242")
	require.NoError(t, err)

	_, err = service.ValidateToken(confirmation.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserLookupAuthorization(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "Pat", "pat@example.com", "123456")
	require.NoError(t, err)

	self := &domain.Actor{ID: user.ID.String(), Role: domain.RoleUser}
	found, err := service.GetUserByID(ctx, self, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = service.GetUserByID(ctx, patientActor("someone-else"), user.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = service.GetUserByID(ctx, nil, user.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = service.GetUserByID(ctx, adminActor(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = service.ListUsers(ctx, self)
	assert.ErrorIs(t, err, ErrForbidden)

	users, err := service.ListUsers(ctx, adminActor())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
