package validator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-intake/pkg/logger"
)

func TestValidateContentType(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), nil)

	for _, ct := range []string{"image/jpeg", "image/png", "image/tiff", "application/pdf"} {
		assert.NoError(t, v.ValidateContentType(ct), ct)
	}
	for _, ct := range []string{"", "text/plain", "image/gif", "IMAGE/PNG", "application/msword"} {
		assert.ErrorIs(t, v.ValidateContentType(ct), ErrUnsupportedType, ct)
	}
}

func TestExtension(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), nil)

	cases := []struct {
		filename, contentType, want string
	}{
		{"scan.PNG", "image/png", ".png"},
		{"report.final.Pdf", "application/pdf", ".pdf"},
		{"photo.jpeg", "image/jpeg", ".jpeg"},
		{"noext", "image/jpeg", ".jpg"},
		{"noext", "image/tiff", ".tif"},
		{"noext", "application/pdf", ".pdf"},
		{"noext", "text/plain", ""},
		{"trailing.", "image/png", ""},
		{".hidden", "image/png", ""},
		{"", "image/png", ".png"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, v.Extension(tc.filename, tc.contentType), tc.filename)
	}
}

func TestReadBody(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{
		MaxFileSize:  8,
		AllowedTypes: DefaultConfig().AllowedTypes,
	})

	data, info, err := v.ReadBody(strings.NewReader("%PDF-1.4"), "a.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, ".pdf", info.Extension)
	assert.Len(t, info.Hash, 64)

	_, _, err = v.ReadBody(bytes.NewReader(nil), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = v.ReadBody(strings.NewReader("123456789"), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
