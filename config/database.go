package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// DatabaseConfig describes the Postgres connection and its pool.
type DatabaseConfig struct {
	URL             string        `yaml:"-"`
	User            string        `yaml:"-"`
	Password        string        `yaml:"-"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	PingTimeout     time.Duration `yaml:"pingTimeout"`
	// AutoMigrate applies the embedded migrations when the API server starts.
	AutoMigrate bool `yaml:"autoMigrate"`
}

func (d *DatabaseConfig) applyEnv() {
	setString(&d.URL, "DATABASE_URL")
	setString(&d.User, "POSTGRES_USER")
	setString(&d.Password, "POSTGRES_PASSWORD")
	setString(&d.Host, "POSTGRES_SERVER")
	setString(&d.Port, "POSTGRES_PORT")
	setString(&d.Name, "POSTGRES_DB")
	setString(&d.SSLMode, "POSTGRES_SSLMODE")
	setInt(&d.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&d.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setDuration(&d.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")
	setDuration(&d.PingTimeout, "DB_PING_TIMEOUT")
	setBool(&d.AutoMigrate, "DB_AUTO_MIGRATE")
}

// DSN returns DATABASE_URL when set, otherwise a postgres:// URL built from
// the POSTGRES_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

func (d DatabaseConfig) validate() error {
	if d.URL == "" && (d.Host == "" || d.Name == "") {
		return fmt.Errorf("database: DATABASE_URL or POSTGRES_SERVER and POSTGRES_DB are required")
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("database: DB_MAX_OPEN_CONNS must be positive")
	}
	return nil
}
