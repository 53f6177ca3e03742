package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/pkg/logger"
)

const principalKey = "principal"

// Principal is who a request acts as: either anonymous or a known user.
type Principal struct {
	user *models.User
}

// Anonymous is the principal of a request without a usable bearer token.
var Anonymous = Principal{}

func UserPrincipal(u *models.User) Principal {
	return Principal{user: u}
}

func (p Principal) IsAnonymous() bool { return p.user == nil }

// User returns the authenticated user, if any.
func (p Principal) User() (*models.User, bool) {
	return p.user, p.user != nil
}

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Auth resolves the request's Principal from an Authorization: Bearer
// header. It never rejects a request; handlers decide what anonymous
// callers may do.
func Auth(a Authenticator, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := Anonymous
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			u, err := a.Authenticate(c.Request.Context(), token)
			switch {
			case err == nil:
				principal = UserPrincipal(u)
			case errors.Is(err, context.Canceled):
			default:
				log.Debug("Bearer token not accepted",
					logger.String("requestId", RequestIDFromContext(c)),
					logger.Error(err),
				)
			}
		}
		SetPrincipal(c, principal)
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal stored by Auth, or Anonymous.
func PrincipalFrom(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Anonymous
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
