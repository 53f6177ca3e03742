package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-intake/api/middleware"
	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/service/account"
	"github.com/feichai0017/document-intake/pkg/logger"
)

var errNotAuthenticated = errors.New("not authenticated")

type AccountHandler struct {
	service AccountService
	logger  logger.Logger
}

func NewAccountHandler(service AccountService, log logger.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  log.Named("handlers.account"),
	}
}

type UserResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type ProfileResponse struct {
	UserResponse
	RegisteredAt time.Time `json:"registered_at"`
}

// TokenForm is the OAuth2 password grant form.
type TokenForm struct {
	GrantType string `form:"grant_type"`
	Username  string `form:"username" binding:"required"`
	Password  string `form:"password" binding:"required"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// Register handles POST /users/.
func (h *AccountHandler) Register(c *gin.Context) {
	var req account.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.BadRequest("Invalid registration payload", err))
		return
	}

	u, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(u))
}

// Me handles GET /users/me for the caller's own profile.
func (h *AccountHandler) Me(c *gin.Context) {
	u, ok := middleware.PrincipalFrom(c).User()
	if !ok {
		respondError(c, h.logger, apperr.Unauthorized("Invalid or expired authentication token.", errNotAuthenticated))
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{
		UserResponse: newUserResponse(u),
		RegisteredAt: u.RegisteredAt,
	})
}

// Token handles POST /auth/token.
func (h *AccountHandler) Token(c *gin.Context) {
	var form TokenForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, h.logger, apperr.BadRequest("username and password are required", err))
		return
	}
	if form.GrantType != "" && form.GrantType != "password" {
		respondError(c, h.logger, apperr.BadRequest("Unsupported grant type", nil))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh. The token comes from the refresh-token
// header or, failing that, the refresh_token form field.
func (h *AccountHandler) Refresh(c *gin.Context) {
	token := c.GetHeader("refresh-token")
	if token == "" {
		token = c.PostForm("refresh_token")
	}
	if token == "" {
		respondError(c, h.logger, apperr.Unauthorized("Invalid refresh token.", account.ErrInvalidRefreshToken))
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}
