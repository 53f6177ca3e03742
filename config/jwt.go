package config

import (
	"fmt"
	"time"
)

// JWTConfig holds the token signing settings.
type JWTConfig struct {
	Secret             string `yaml:"-"`
	Algorithm          string `yaml:"algorithm"`
	AccessTokenMinutes int    `yaml:"accessTokenMinutes"`
}

func (j *JWTConfig) applyEnv() {
	setString(&j.Secret, "JWT_SECRET")
	setString(&j.Algorithm, "JWT_ALGORITHM")
	setInt(&j.AccessTokenMinutes, "ACCESS_TOKEN_EXPIRE_MINUTES")
	setInt(&j.AccessTokenMinutes, "JWT_TOKEN_EXPIRE_MINUTES")
}

// AccessTokenTTL is the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.AccessTokenMinutes) * time.Minute
}

func (j JWTConfig) validate() error {
	if j.Secret == "" {
		return fmt.Errorf("jwt: JWT_SECRET is required")
	}
	switch j.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("jwt: unsupported JWT_ALGORITHM %q", j.Algorithm)
	}
	if j.AccessTokenMinutes <= 0 {
		return fmt.Errorf("jwt: JWT_TOKEN_EXPIRE_MINUTES must be positive")
	}
	return nil
}
