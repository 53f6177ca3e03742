package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/document-intake/pkg/logger"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file provided")
	ErrFileTooLarge    = errors.New("file too large")
)

// DocumentValidator checks uploads before they reach storage.
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

type ValidatorConfig struct {
	MaxFileSize int64
	// AllowedTypes maps each accepted content type to its canonical extension.
	AllowedTypes map[string]string
}

// FileInfo describes a body that passed validation.
type FileInfo struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	DetectedType string `json:"detectedType"`
	Extension    string `json:"extension"`
	Hash         string `json:"hash"`
}

// DefaultConfig accepts JPEG, PNG, TIFF and PDF up to 50MB.
func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 50 * 1024 * 1024,
		AllowedTypes: map[string]string{
			"image/jpeg":      ".jpg",
			"image/png":       ".png",
			"image/tiff":      ".tif",
			"application/pdf": ".pdf",
		},
	}
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{
		logger: log,
		config: config,
	}
}

// ValidateContentType accepts only the configured content types, compared
// verbatim.
func (v *DocumentValidator) ValidateContentType(contentType string) error {
	if _, ok := v.config.AllowedTypes[contentType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return nil
}

// Extension returns the lowercased suffix of filename when the name contains
// a dot, otherwise the canonical extension of contentType, otherwise "".
func (v *DocumentValidator) Extension(filename, contentType string) string {
	if strings.Contains(filename, ".") {
		return suffix(filename)
	}
	return v.config.AllowedTypes[contentType]
}

// suffix mirrors the usual notion of a file suffix: dotfiles and names
// ending in a dot have none.
func suffix(filename string) string {
	name := filepath.Base(filename)
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// ReadBody reads the whole upload, rejecting empty and oversized bodies.
func (v *DocumentValidator) ReadBody(r io.Reader, filename, contentType string) ([]byte, *FileInfo, error) {
	limit := v.config.MaxFileSize
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, ErrEmptyFile
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}

	info := &FileInfo{
		Filename:     filename,
		Size:         int64(len(data)),
		MimeType:     contentType,
		DetectedType: http.DetectContentType(data),
		Extension:    v.Extension(filename, contentType),
		Hash:         calculateHash(data),
	}
	if !strings.HasPrefix(info.DetectedType, strings.SplitN(contentType, "/", 2)[0]) {
		v.logger.Debug("Declared content type differs from detected type",
			logger.String("filename", filename),
			logger.String("declared", contentType),
			logger.String("detected", info.DetectedType),
		)
	}
	return data, info, nil
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
