package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// decoders for the formats browsers commonly hand us
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotSmaller is returned when an optimized asset would not save space.
	ErrNotSmaller = errors.New("optimized output is not smaller than the source")
	// ErrTooManyPixels is returned for images whose decoded size exceeds MaxPixels.
	ErrTooManyPixels = errors.New("image has too many pixels to decode")
)

// DefaultMaxPixels caps decoding when ImageCompressor.MaxPixels is unset.
const DefaultMaxPixels = 40_000_000

// ImageCompressor re-encodes images as JPEG within a pixel and byte budget.
type ImageCompressor struct {
	MaxBytes     int // target size; the lowest quality is kept if it cannot be met
	MaxDimension int // longest side in pixels
	MaxPixels    int // width*height above which the image is not decoded at all
}

var jpegQualities = []int{85, 75, 65, 55, 45}

// Compress decodes src, downsizes it to fit MaxDimension and encodes it at
// decreasing JPEG quality until it fits MaxBytes.
//
// Decode memory follows the pixel count, not the file size, so the header is
// checked against MaxPixels first.
func (c ImageCompressor) Compress(ctx context.Context, src []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	limit := c.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	canvas := fit(img, c.MaxDimension)

	var best []byte
	for _, q := range jpegQualities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		best = buf.Bytes()
		if c.MaxBytes <= 0 || len(best) <= c.MaxBytes {
			break
		}
	}

	if len(best) >= len(src) {
		return nil, ErrNotSmaller
	}
	return best, nil
}

// fit scales img so its longest side is at most maxDim and flattens it onto
// white, since JPEG has no alpha channel.
func fit(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
