package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-intake/api/handlers"
	"github.com/feichai0017/document-intake/api/middleware"
	"github.com/feichai0017/document-intake/pkg/logger"
)

// Options carries what the global middleware chain needs.
type Options struct {
	AllowOrigins  []string
	Authenticator middleware.Authenticator
	Logger        logger.Logger
}

// SetupRoutes installs the middleware chain and every endpoint on r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	r.Use(
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Recovery(opts.Logger),
		middleware.CORS(opts.AllowOrigins),
		middleware.Auth(opts.Authenticator, opts.Logger),
	)

	r.GET("/", h.Health.Check)

	users := r.Group("/users")
	{
		users.POST("/", h.Account.Register)
		users.GET("/me", h.Account.Me)
	}

	auth := r.Group("/auth")
	{
		auth.POST("/token", h.Account.Token)
		auth.POST("/refresh", h.Account.Refresh)
	}

	r.POST("/uploads/", h.Upload.Create)
	r.GET("/jobs/:id", h.Upload.GetJob)
	r.GET("/documents/:id", h.Upload.GetDocument)
}
