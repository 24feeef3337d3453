// README: Export renders the draft photo with its watermark band into a JPEG.
package export

import (
	"errors"
	"time"
)

const (
	JPEGQuality     = 95
	MaxSourceBytes  = 20 << 20
	MaxDimension    = 4096
	MaxPixels       = 50_000_000
	DefaultFetchTTL = 15 * time.Second
)

var (
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrSourceTooLarge   = errors.New("source image too large")
	ErrFetch            = errors.New("fetching source image")
	ErrImageTooLarge    = errors.New("image dimensions too large")
)

// Overlay is the watermark content. A nil overlay renders the bare photo.
type Overlay struct {
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	Date      time.Time
}
