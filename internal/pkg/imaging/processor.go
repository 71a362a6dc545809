package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Kind identifies a supported pixel transformation.
// The set is closed; anything else is rejected before decoding.
type Kind string

const (
	KindRotate     Kind = "rotate"
	KindFlip       Kind = "flip"
	KindGrayscale  Kind = "grayscale"
	KindBrightness Kind = "brightness"
)

var (
	// ErrUnknownKind is returned for a transformation outside the supported set
	ErrUnknownKind = errors.New("unknown transformation kind")

	// ErrUndecodable is returned when the input bytes are not a decodable image
	ErrUndecodable = errors.New("undecodable image data")
)

// Kinds returns the supported transformation names
func Kinds() []string {
	return []string{string(KindRotate), string(KindFlip), string(KindGrayscale), string(KindBrightness)}
}

// ParseKind resolves a transformation name into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRotate, KindFlip, KindGrayscale, KindBrightness:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Config for the transform engine
type Config struct {
	ThumbWidth  int     // Thumbnail bounding box width (default 150)
	ThumbHeight int     // Thumbnail bounding box height (default 150)
	Quality     int     // JPEG quality 1-100 (default 85)
	Brightness  float64 // Brightness adjustment percentage (default 50)
}

// DefaultConfig returns default engine config
func DefaultConfig() Config {
	return Config{
		ThumbWidth:  150,
		ThumbHeight: 150,
		Quality:     85,
		Brightness:  50,
	}
}

// Engine applies pixel transformations. It is stateless and deterministic:
// the same input bytes and kind always produce byte-identical output.
type Engine struct {
	config Config
}

// NewEngine creates a transform engine
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Apply runs a transformation over the given image bytes and returns
// the result encoded as JPEG
func (e *Engine) Apply(data []byte, kind Kind) ([]byte, error) {
	// Reject bad kinds before any bytes are touched
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	img, err := e.decode(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindRotate:
		img = imaging.Rotate90(img)
	case KindFlip:
		img = imaging.FlipH(img)
	case KindGrayscale:
		img = imaging.Grayscale(img)
	case KindBrightness:
		img = imaging.AdjustBrightness(img, e.config.Brightness)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return e.encode(img)
}

// Thumbnail produces a JPEG thumbnail fitted into the configured bounding box
func (e *Engine) Thumbnail(data []byte) ([]byte, error) {
	img, err := e.decode(data)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, e.config.ThumbWidth, e.config.ThumbHeight, imaging.Lanczos)
	return e.encode(thumb)
}

// Normalize re-encodes arbitrary image bytes as JPEG. Used at upload time so
// every stored version shares one format regardless of the input.
func (e *Engine) Normalize(data []byte) ([]byte, error) {
	img, err := e.decode(data)
	if err != nil {
		return nil, err
	}
	return e.encode(img)
}

func (e *Engine) decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, nil
}

func (e *Engine) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.config.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
