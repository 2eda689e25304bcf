// Package imaging normalizes catalog pictures before they are stored with a
// definition: the format is sniffed, oversized pictures are scaled down and
// everything is re-encoded as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Limits bound what Normalize accepts and produces.
type Limits struct {
	// MaxDimension is the longest side of the stored picture.
	MaxDimension int
	// MaxPixels rejects inputs whose decoded size would exceed it.
	MaxPixels int
	// Quality is the JPEG quality of the output.
	Quality int
}

// DefaultLimits are used for definition pictures.
var DefaultLimits = Limits{
	MaxDimension: 800,
	MaxPixels:    40_000_000,
	Quality:      82,
}

var (
	// ErrUnsupported is returned for anything but JPEG and PNG input.
	ErrUnsupported = errors.New("unsupported image format, only JPEG and PNG are accepted")
	// ErrTooLarge is returned when the decoded picture would exceed MaxPixels.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Picture is a normalized image ready to store.
type Picture struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
}

var configDecoders = map[string]func(io.Reader) (image.Config, error){
	"image/jpeg": jpeg.DecodeConfig,
	"image/png":  png.DecodeConfig,
}

// Normalize reads a picture, checks its real format and size, fits it within
// l.MaxDimension and re-encodes it as JPEG. Transparent areas become white.
func Normalize(r io.Reader, l Limits) (*Picture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	// Client-supplied content types are not trusted.
	mime := http.DetectContentType(data)
	decode, ok := decoders[mime]
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupported, mime)
	}

	cfg, err := configDecoders[mime](bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if l.MaxPixels > 0 && cfg.Width*cfg.Height > l.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), l.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: l.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Picture{Data: buf.Bytes(), MIME: "image/jpeg", Width: w, Height: h}, nil
}

// fit returns w x h scaled down, keeping the aspect ratio, so that neither
// side exceeds maxDim. Pictures are never scaled up.
func fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}
