package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/feichai0017/document-intake/config"
)

// ErrInvalidToken is returned when a token cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the decoded payload of a token.
type Claims map[string]any

// UserID extracts the numeric "id" claim.
func (c Claims) UserID() (int64, bool) {
	switch v := c["id"].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// TokenService signs and verifies HMAC JWTs with a shared secret.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("empty token secret")
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
		now:    time.Now,
	}, nil
}

// IssueAccessToken signs a copy of claims with an exp of now+ttl.
func (s *TokenService) IssueAccessToken(claims Claims, ttl time.Duration) (string, error) {
	mc := copyClaims(claims)
	mc["exp"] = s.now().Add(ttl).Unix()
	return s.sign(mc)
}

// IssueRefreshToken signs a copy of claims without an expiry.
func (s *TokenService) IssueRefreshToken(claims Claims) (string, error) {
	return s.sign(copyClaims(claims))
}

// Decode verifies the signature, algorithm and expiry of token. Any failure
// yields ok=false.
func (s *TokenService) Decode(token string) (Claims, bool) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (s *TokenService) parse(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Claims(mc), nil
}

func (s *TokenService) sign(mc jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(s.method, mc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func copyClaims(claims Claims) jwt.MapClaims {
	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	return mc
}
