package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv loads the .env file at the module root, then one in the working
// directory. Variables already present in the environment are never replaced.
func loadDotEnv() {
	_, filename, _, _ := runtime.Caller(0)
	rootDir := filepath.Dir(filepath.Dir(filename))
	envPath := filepath.Join(rootDir, ".env")

	if err := godotenv.Load(envPath); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v, ok := lookup(key); ok {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func setInt64(dst *int64, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a boolean, keeping %t", key, v, *dst)
		return
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, keeping %s", key, v, *dst)
		return
	}
	*dst = d
}

func setList(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
