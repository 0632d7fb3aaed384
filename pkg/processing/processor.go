// Package processing loads, orients, scales and encodes tray photographs.
package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

var (
	// ErrUnsupportedFormat reports bytes no registered decoder understands
	ErrUnsupportedFormat = errors.New("unknown or unsupported image format")
	// ErrImageTooSmall reports an image below the configured minimum size
	ErrImageTooSmall = errors.New("image too small")
	// ErrInvalidRotation reports a rotation that is not a multiple of 90
	ErrInvalidRotation = errors.New("rotation must be 0, 90, 180 or 270 degrees")
)

// Processor handles image I/O and orientation
type Processor struct {
	minSize int
}

// NewProcessor creates a processor that rejects images smaller than minSize
// pixels on either side
func NewProcessor(minSize int) *Processor {
	if minSize < 1 {
		minSize = 1
	}
	return &Processor{minSize: minSize}
}

// LoadImageFromURL downloads and decodes an image, returning the raw bytes
// alongside so callers can keep the original upload
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, []byte, error) {
	data, err := fetchURL(imageURL)
	if err != nil {
		return nil, nil, err
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

func fetchURL(imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest("GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "seedtray-annotator/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}
	return data, nil
}

// LoadImage reads and decodes an image file
func (p *Processor) LoadImage(path string) (image.Image, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, data, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, []byte, error) {
	if isURL(source) {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// ReadSource returns the raw bytes of a file path or URL without decoding
// them, for callers that hand the upload to a session which decodes it
func (p *Processor) ReadSource(source string) ([]byte, error) {
	if isURL(source) {
		return fetchURL(source)
	}
	return os.ReadFile(source)
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Decode decodes JPEG, PNG or WebP bytes, applies the EXIF orientation tag
// and checks the minimum size
func (p *Processor) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		img, err = webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, ErrUnsupportedFormat
		}
	}
	if err := p.Validate(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate rejects images smaller than the configured minimum
func (p *Processor) Validate(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < p.minSize || b.Dy() < p.minSize {
		return fmt.Errorf("%w: %dx%d (minimum %d px per side)", ErrImageTooSmall, b.Dx(), b.Dy(), p.minSize)
	}
	return nil
}

// Rotate turns img clockwise by degrees, which must be a multiple of 90
func Rotate(img image.Image, degrees int) (*image.NRGBA, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return imaging.Clone(img), nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRotation, degrees)
	}
}

// DisplayScale returns the factor that fits an image of the given width into
// maxWidth display pixels, never enlarging
func DisplayScale(width, maxWidth int) float64 {
	if maxWidth <= 0 || width <= maxWidth {
		return 1
	}
	return float64(maxWidth) / float64(width)
}

// FromDisplay maps a click on the scaled display back to source pixels
func FromDisplay(p geometry.Point, scale float64) geometry.Point {
	if scale <= 0 {
		return p
	}
	return geometry.Point{X: p.X / scale, Y: p.Y / scale}
}

// Thumbnail resizes img to at most maxWidth wide, preserving aspect ratio
func Thumbnail(img image.Image, maxWidth int) *image.NRGBA {
	scale := DisplayScale(img.Bounds().Dx(), maxWidth)
	if scale == 1 {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// Encode writes img in format (png, jpg or webp)
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: quality >= 100, Quality: float32(quality)})
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// EncodePNG returns img as lossless PNG bytes
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}
