package media

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/jdeng/goheif"
)

// Converted is the result of a Transcoder.
type Converted struct {
	Data     []byte
	MimeType string
	Filename string
}

// Transcoder turns formats browsers cannot render into ones they can.
type Transcoder interface {
	Convert(data []byte, mimeType, filename string) (Converted, error)
}

// IsHEIC reports whether the mime type or file extension names HEIC/HEIF.
func IsHEIC(mimeType, filename string) bool {
	switch strings.ToLower(mimeType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic", ".heif":
		return true
	}
	return false
}

// HEICToJPEG re-encodes HEIC/HEIF images as JPEG and leaves everything else alone.
type HEICToJPEG struct {
	Quality int
}

// Convert implements Transcoder.
func (h HEICToJPEG) Convert(data []byte, mimeType, filename string) (Converted, error) {
	if !IsHEIC(mimeType, filename) {
		return Converted{Data: data, MimeType: mimeType, Filename: filename}, nil
	}

	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return Converted{}, fmt.Errorf("decode heic %s: %w", filename, err)
	}
	quality := h.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Converted{}, fmt.Errorf("encode jpeg %s: %w", filename, err)
	}
	return Converted{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Filename: ReplaceExt(filename, ".jpg"),
	}, nil
}

// ReplaceExt swaps the extension of filename for ext.
func ReplaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}
