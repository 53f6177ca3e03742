package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
)

const thumbnailSize = 64

// MaxImagePixels caps width*height of images the probe will decode.
const MaxImagePixels = 50_000_000

var ErrImageTooLarge = errors.New("image too large")

// Quality summarises a source file before any OCR work.
type Quality struct {
	Size       int64   `json:"size"`
	SHA256     string  `json:"sha256"`
	Format     string  `json:"format"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Brightness float64 `json:"brightness,omitempty"`
	Pages      int     `json:"pages,omitempty"`
	Title      string  `json:"title,omitempty"`
	Author     string  `json:"author,omitempty"`
	Readable   bool    `json:"readable"`
	Error      string  `json:"error,omitempty"`
}

// Probe inspects data. Files that cannot be decoded still get a Quality
// with Readable=false and the decoder error.
func Probe(data []byte) *Quality {
	sum := sha256.Sum256(data)
	q := &Quality{
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}

	var err error
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		q.Format = "pdf"
		err = probePDF(data, q)
	} else {
		err = probeImage(data, q)
	}
	if err != nil {
		q.Error = err.Error()
		return q
	}
	q.Readable = true
	return q
}

func probeImage(data []byte, q *Quality) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	q.Format = format
	q.Width, q.Height = cfg.Width, cfg.Height
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, MaxImagePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	q.Width = bounds.Dx()
	q.Height = bounds.Dy()
	q.Brightness = meanBrightness(img)
	return nil
}

// meanBrightness averages the luma of a small grayscale thumbnail, 0..255.
func meanBrightness(img image.Image) float64 {
	thumb := imaging.Grayscale(imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Box))
	b := thumb.Bounds()
	if b.Empty() {
		return 0
	}

	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			total += float64(thumb.NRGBAAt(x, y).R)
		}
	}
	return total / float64(b.Dx()*b.Dy())
}

func probePDF(data []byte, q *Quality) (err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	q.Pages = reader.NumPage()

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		q.Title = strings.TrimSpace(info.Key("Title").Text())
		q.Author = strings.TrimSpace(info.Key("Author").Text())
	}
	return nil
}
