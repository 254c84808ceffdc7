// Package media prepares profile and event images before they are forwarded
// to the backend.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the default upload ceiling.
const MaxImageBytes = 5 << 20

var (
	ErrNotImage = errors.New("Only image files allowed")
	ErrTooLarge = errors.New("Max size 5MB")
)

// Image is an upload that passed Prepare.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Prepare checks that data is an image no larger than maxBytes, judged by
// its content rather than the client's header, and strips metadata from
// JPEG and PNG files.
func Prepare(filename string, data []byte, maxBytes int) (*Image, error) {
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	if len(data) > maxBytes {
		return nil, ErrTooLarge
	}
	mt := mimetype.Detect(data)
	ct := mt.String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, ErrNotImage
	}
	out, err := StripMetadata(data, ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if filename == "" {
		filename = "upload" + mt.Extension()
	}
	return &Image{Filename: filename, ContentType: ct, Data: out}, nil
}

// StripMetadata re-encodes images to remove EXIF, GPS, and other metadata.
// For other types data is returned unchanged.
func StripMetadata(data []byte, contentType string) ([]byte, error) {
	switch contentType {
	case "image/jpeg":
		return stripJPEG(data)
	case "image/png":
		return stripPNG(data)
	default:
		return data, nil
	}
}

func stripJPEG(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func stripPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
