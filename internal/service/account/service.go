package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/internal/security"
	"github.com/feichai0017/document-intake/pkg/logger"
)

var (
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrUserExists          = errors.New("user already exists")
	ErrEmailNotRegistered  = errors.New("email is not registered")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountUnverified   = errors.New("account is unverified")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidAccessToken  = errors.New("invalid or expired access token")
)

// UserStore is the persistence the account workflow needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenIssuer signs and verifies the tokens handed to clients.
type TokenIssuer interface {
	IssueAccessToken(claims security.Claims, ttl time.Duration) (string, error)
	IssueRefreshToken(claims security.Claims) (string, error)
	Decode(token string) (security.Claims, bool)
}

type RegisterRequest struct {
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service registers users and exchanges credentials for tokens.
type Service struct {
	users     UserStore
	tokens    TokenIssuer
	accessTTL time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewService(users UserStore, tokens TokenIssuer, accessTTL time.Duration, log logger.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		accessTTL: accessTTL,
		logger:    log.Named("account"),
		now:       time.Now,
	}
}

// Register creates an active, unverified account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperr.BadRequest("Passwords do not match", ErrPasswordMismatch)
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, apperr.BadRequest("User already exists", ErrUserExists)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   false,
		RegisteredAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.BadRequest("User already exists", ErrUserExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User registered", logger.Int64("userId", u.ID))
	return u, nil
}

// Login checks credentials and account state, then issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Auth(http.StatusBadRequest, "Email is not registered with us.", ErrEmailNotRegistered)
	}
	if err != nil {
		return nil, err
	}

	if !security.VerifyPassword(password, u.PasswordHash) {
		return nil, apperr.Auth(http.StatusBadRequest, "Invalid login credentials.", ErrInvalidCredentials)
	}
	if !u.IsActive {
		return nil, apperr.Auth(http.StatusBadRequest, "Your account is inactive. Please contact support.", ErrAccountInactive)
	}
	if !u.IsVerified {
		return nil, apperr.Auth(http.StatusBadRequest,
			"Your account is unverified. We have resend the account verification email.", ErrAccountUnverified)
	}

	return s.issue(u, "")
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is returned unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, ok := s.tokens.Decode(refreshToken)
	if !ok {
		return nil, apperr.Unauthorized("Invalid refresh token.", ErrInvalidRefreshToken)
	}
	id, ok := claims.UserID()
	if !ok || id == 0 {
		return nil, apperr.Unauthorized("Invalid refresh token.", ErrInvalidRefreshToken)
	}

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("Your account is inactive. Please contact support.", ErrAccountInactive)
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u, refreshToken)
}

// Authenticate resolves the user an access token was issued to.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, ok := s.tokens.Decode(accessToken)
	if !ok {
		return nil, ErrInvalidAccessToken
	}
	id, ok := claims.UserID()
	if !ok || id == 0 {
		return nil, ErrInvalidAccessToken
	}

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidAccessToken
	}
	return u, err
}

func (s *Service) issue(u *models.User, refreshToken string) (*TokenResponse, error) {
	claims := security.Claims{"id": u.ID}

	access, err := s.tokens.IssueAccessToken(claims, s.accessTTL)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		if refreshToken, err = s.tokens.IssueRefreshToken(claims); err != nil {
			return nil, err
		}
	}

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}
