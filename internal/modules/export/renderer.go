package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// bandWidth is the native width the watermark band is laid out at before it
// is scaled onto the photo.
const bandWidth = 480

type Renderer struct {
	http     *http.Client
	maxBytes int64
	log      zerolog.Logger
}

type Option func(*Renderer)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Renderer) { r.http = c }
}

func WithMaxSourceBytes(n int64) Option {
	return func(r *Renderer) { r.maxBytes = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Renderer) { r.log = l.With().Str("component", "export").Logger() }
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		http:     &http.Client{Timeout: DefaultFetchTTL},
		maxBytes: MaxSourceBytes,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render loads imageURL, flattens it onto white, draws ov when non-nil and
// writes a JPEG to w.
func (r *Renderer) Render(ctx context.Context, imageURL string, ov *Overlay, w io.Writer) error {
	raw, err := r.load(ctx, imageURL)
	if err != nil {
		return err
	}
	if _, _, err := Inspect(raw); err != nil {
		return err
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	canvas := flatten(src, MaxDimension)
	if ov != nil {
		drawWatermark(canvas, *ov)
	}
	if err := jpeg.Encode(w, canvas, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return fmt.Errorf("encoding jpeg: %w", err)
	}
	r.log.Debug().Str("format", format).Int("width", canvas.Bounds().Dx()).Int("height", canvas.Bounds().Dy()).Msg("rendered export")
	return nil
}

// Inspect reads only the image header of raw. It fails with
// ErrUnsupportedImage for anything the renderer cannot decode and with
// ErrImageTooLarge when the decoded pixels would exceed MaxPixels.
func Inspect(raw []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", fmt.Errorf("%w: empty %dx%d image", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return image.Config{}, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return cfg, format, nil
}

// flatten draws src over an opaque white canvas, downscaling it so neither
// side exceeds limit.
func flatten(src image.Image, limit int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > limit || h > limit {
		if w >= h {
			h = h * limit / w
			w = limit
		} else {
			w = w * limit / h
			h = limit
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	return dst
}

// watermarkLines returns the band text, top to bottom.
func watermarkLines(ov Overlay) []string {
	lines := make([]string, 0, 4)
	if s := strings.TrimSpace(ov.Name); s != "" {
		lines = append(lines, s)
	}
	if s := strings.TrimSpace(ov.Address); s != "" {
		lines = append(lines, s)
	}
	lines = append(lines, fmt.Sprintf("Lat %.6f  Long %.6f", ov.Latitude, ov.Longitude))
	if !ov.Date.IsZero() {
		lines = append(lines, ov.Date.Format("02/01/2006 03:04 PM MST"))
	}
	return lines
}

// drawWatermark lays the text out on a small band at native font size and
// scales the band onto the bottom of dst.
func drawWatermark(dst *image.RGBA, ov Overlay) {
	face := basicfont.Face7x13
	const pad, lineH = 8, 16
	lines := watermarkLines(ov)

	band := image.NewRGBA(image.Rect(0, 0, bandWidth, pad*2+lineH*len(lines)))
	draw.Draw(band, band.Bounds(), image.NewUniform(color.NRGBA{A: 150}), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: band, Src: image.White, Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(pad, pad+lineH*i+face.Ascent)
		d.DrawString(fitWidth(face, line, bandWidth-pad*2))
	}

	db := dst.Bounds()
	scale := float64(db.Dx()) / float64(bandWidth)
	h := int(float64(band.Bounds().Dy()) * scale)
	if h > db.Dy() {
		h = db.Dy()
	}
	target := image.Rect(db.Min.X, db.Max.Y-h, db.Max.X, db.Max.Y)
	draw.ApproxBiLinear.Scale(dst, target, band, band.Bounds(), draw.Over, nil)
}

// fitWidth truncates s with an ellipsis so it fits in px pixels.
func fitWidth(face font.Face, s string, px int) string {
	limit := fixed.I(px)
	if font.MeasureString(face, s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		if font.MeasureString(face, string(r)+"...") <= limit {
			return string(r) + "..."
		}
	}
	return ""
}
