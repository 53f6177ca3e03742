package account

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/internal/security"
	"github.com/feichai0017/document-intake/pkg/logger"
)

type memoryUsers struct {
	mu     sync.Mutex
	byID   map[int64]*models.User
	nextID int64
	// raceOnCreate simulates a concurrent insert winning the unique index.
	raceOnCreate bool
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[int64]*models.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate {
		return errors.Join(errors.New("insert"), repository.ErrDuplicate)
	}
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) update(id int64, fn func(u *models.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.byID[id])
}

const ttl = 30 * time.Minute

func newTestService(t *testing.T) (*Service, *memoryUsers, *security.TokenService) {
	t.Helper()
	tokens, err := security.NewTokenService(config.JWTConfig{Secret: "test-secret", Algorithm: "HS256", AccessTokenMinutes: 30})
	require.NoError(t, err)
	users := newMemoryUsers()
	return NewService(users, tokens, ttl, logger.NewNop()), users, tokens
}

func registerRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Password:        "engine",
		ConfirmPassword: "engine",
	}
}

func assertRejected(t *testing.T, err error, status int, detail string) {
	t.Helper()
	require.Error(t, err)
	e := apperr.From(err)
	assert.Equal(t, status, e.Status)
	assert.Equal(t, detail, e.Detail)
}

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	svc, users, _ := newTestService(t)

	u, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsVerified)
	assert.False(t, u.RegisteredAt.IsZero())
	assert.NotEqual(t, "engine", u.PasswordHash)
	assert.True(t, security.VerifyPassword("engine", u.PasswordHash))

	stored, err := users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	svc, users, _ := newTestService(t)
	req := registerRequest("ada@example.com")
	req.ConfirmPassword = "different"

	_, err := svc.Register(context.Background(), req)
	assertRejected(t, err, http.StatusBadRequest, "Passwords do not match")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, users.byID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), registerRequest("ada@example.com"))
	assertRejected(t, err, http.StatusBadRequest, "User already exists")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterConcurrentDuplicateMapsToUserExists(t *testing.T) {
	svc, users, _ := newTestService(t)
	users.raceOnCreate = true

	_, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	assertRejected(t, err, http.StatusBadRequest, "User already exists")
}

func TestLogin(t *testing.T) {
	svc, users, tokens := newTestService(t)
	u, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "nobody@example.com", "engine")
	assertRejected(t, err, http.StatusBadRequest, "Email is not registered with us.")
	assert.True(t, apperr.From(err).Authenticate)

	_, err = svc.Login(context.Background(), "ada@example.com", "wrong")
	assertRejected(t, err, http.StatusBadRequest, "Invalid login credentials.")

	_, err = svc.Login(context.Background(), "ada@example.com", "engine")
	assertRejected(t, err, http.StatusBadRequest, "Your account is unverified. We have resend the account verification email.")

	users.update(u.ID, func(u *models.User) { u.IsVerified = true; u.IsActive = false })
	_, err = svc.Login(context.Background(), "ada@example.com", "engine")
	assertRejected(t, err, http.StatusBadRequest, "Your account is inactive. Please contact support.")

	users.update(u.ID, func(u *models.User) { u.IsActive = true })
	res, err := svc.Login(context.Background(), "ada@example.com", "engine")
	require.NoError(t, err)
	assert.Equal(t, int64(ttl.Seconds()), res.ExpiresIn)
	assert.Equal(t, int64(1800), res.ExpiresIn)

	access, ok := tokens.Decode(res.AccessToken)
	require.True(t, ok)
	id, ok := access.UserID()
	require.True(t, ok)
	assert.Equal(t, u.ID, id)
	assert.Contains(t, access, "exp")

	refresh, ok := tokens.Decode(res.RefreshToken)
	require.True(t, ok)
	assert.NotContains(t, refresh, "exp")
}

func TestRefresh(t *testing.T) {
	svc, users, tokens := newTestService(t)
	u, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	require.NoError(t, err)
	users.update(u.ID, func(u *models.User) { u.IsVerified = true })

	login, err := svc.Login(context.Background(), "ada@example.com", "engine")
	require.NoError(t, err)

	res, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, login.RefreshToken, res.RefreshToken)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(1800), res.ExpiresIn)

	_, err = svc.Refresh(context.Background(), "garbage")
	assertRejected(t, err, http.StatusUnauthorized, "Invalid refresh token.")
	assert.True(t, apperr.From(err).Authenticate)

	noSubject, err := tokens.IssueRefreshToken(security.Claims{"sub": "x"})
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), noSubject)
	assertRejected(t, err, http.StatusUnauthorized, "Invalid refresh token.")
}

func TestRefreshForDeletedUser(t *testing.T) {
	svc, _, tokens := newTestService(t)

	orphan, err := tokens.IssueRefreshToken(security.Claims{"id": 404})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), orphan)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.From(err).Status)
}

func TestAuthenticate(t *testing.T) {
	svc, _, tokens := newTestService(t)
	u, err := svc.Register(context.Background(), registerRequest("ada@example.com"))
	require.NoError(t, err)

	access, err := tokens.IssueAccessToken(security.Claims{"id": u.ID}, time.Minute)
	require.NoError(t, err)
	got, err := svc.Authenticate(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	expired, err := tokens.IssueAccessToken(security.Claims{"id": u.ID}, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	ghost, err := tokens.IssueAccessToken(security.Claims{"id": 999}, time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}
