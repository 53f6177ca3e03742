package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-intake/api/middleware"
	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/service/account"
	"github.com/feichai0017/document-intake/internal/service/upload"
	"github.com/feichai0017/document-intake/pkg/logger"
)

// AccountService is the account workflow as seen by the HTTP layer.
type AccountService interface {
	Register(ctx context.Context, req account.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (*account.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*account.TokenResponse, error)
}

type Handlers struct {
	Health  *HealthHandler
	Account *AccountHandler
	Upload  *UploadHandler
}

// NewHandlers builds every handler. maxUploadBytes caps a single uploaded
// file; zero or less disables the request body cap.
func NewHandlers(uploads upload.Service, accounts AccountService, maxUploadBytes int64, log logger.Logger) *Handlers {
	return &Handlers{
		Health:  &HealthHandler{},
		Account: NewAccountHandler(accounts, log),
		Upload:  NewUploadHandler(uploads, maxUploadBytes, log),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func respondError(c *gin.Context, log logger.Logger, err error) {
	e := apperr.From(err)
	if e.Authenticate {
		c.Header("WWW-Authenticate", "Bearer")
	}

	fields := []logger.Field{
		logger.String("requestId", middleware.RequestIDFromContext(c)),
		logger.Int("status", e.Status),
		logger.Error(err),
	}
	if e.Status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), log).Error("Request failed", fields...)
	} else {
		logger.FromContext(c.Request.Context(), log).Debug("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(e.Status, ErrorResponse{Detail: e.Detail})
}

type HealthHandler struct{}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}
