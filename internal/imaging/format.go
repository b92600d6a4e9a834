package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
)

// Format is the closed set of output formats the engine can produce.
type Format int

const (
	FormatUnsupported Format = iota
	FormatJPEG
	FormatPNG
	FormatGIF
)

// FormatFromMIME maps a declared MIME type to a Format. Parameters such as
// charset are ignored.
func FormatFromMIME(mimeType string) Format {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch mediaType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	default:
		return FormatUnsupported
	}
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatGIF:
		return "gif"
	default:
		return "unsupported"
	}
}

// Strategy is the per-format encoding behaviour.
type Strategy interface {
	Format() Format
	ContentType() string
	// QualityAware reports whether EncodeAt output depends on quality.
	QualityAware() bool
	// Load decodes data once for repeated encoding.
	Load(data []byte) (Encoder, error)
}

// Encoder re-encodes one decoded image.
type Encoder interface {
	EncodeDefault() ([]byte, error)
	EncodeAt(quality int) ([]byte, error)
}

func defaultStrategies() map[Format]Strategy {
	return map[Format]Strategy{
		FormatJPEG: jpegStrategy{},
		FormatPNG:  pngStrategy{},
		FormatGIF:  gifStrategy{},
	}
}

type jpegStrategy struct{}

func (jpegStrategy) Format() Format      { return FormatJPEG }
func (jpegStrategy) ContentType() string { return "image/jpeg" }
func (jpegStrategy) QualityAware() bool  { return true }

func (jpegStrategy) Load(data []byte) (Encoder, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return jpegEncoder{img: img}, nil
}

type jpegEncoder struct {
	img image.Image
}

func (e jpegEncoder) EncodeDefault() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, e.img, nil); err != nil {
		return nil, fmt.Errorf("encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (e jpegEncoder) EncodeAt(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, e.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode JPEG at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

// pngStrategy re-encodes losslessly. Decoding keeps pixels only, so ancillary
// chunks such as eXIf orientation are dropped from the output.
type pngStrategy struct{}

func (pngStrategy) Format() Format      { return FormatPNG }
func (pngStrategy) ContentType() string { return "image/png" }
func (pngStrategy) QualityAware() bool  { return false }

func (pngStrategy) Load(data []byte) (Encoder, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return pngEncoder{img: img}, nil
}

type pngEncoder struct {
	img image.Image
}

func (e pngEncoder) EncodeDefault() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, e.img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeAt ignores quality and applies the best lossless compression level.
func (e pngEncoder) EncodeAt(int) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, e.img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// gifStrategy keeps every frame, delay and disposal of an animation.
type gifStrategy struct{}

func (gifStrategy) Format() Format      { return FormatGIF }
func (gifStrategy) ContentType() string { return "image/gif" }
func (gifStrategy) QualityAware() bool  { return false }

func (gifStrategy) Load(data []byte) (Encoder, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return gifEncoder{anim: g}, nil
}

type gifEncoder struct {
	anim *gif.GIF
}

func (e gifEncoder) EncodeDefault() ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, e.anim); err != nil {
		return nil, fmt.Errorf("encode GIF: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeAt ignores quality; GIF frames are already paletted and are re-encoded as is.
func (e gifEncoder) EncodeAt(int) ([]byte, error) {
	return e.EncodeDefault()
}
