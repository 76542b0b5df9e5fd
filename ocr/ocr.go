// Package ocr turns uploaded page photos into text. The recognition engine is
// pluggable; ocr/tesseract provides the gosseract-backed default.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LangTraditionalChinese is the tesseract model name for traditional Chinese.
const LangTraditionalChinese = "chi_tra"

var (
	// ErrInvalidImage means the upload could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrExtraction means the OCR engine failed on a decoded image.
	ErrExtraction = errors.New("text extraction failed")
)

// Image is one uploaded page.
type Image struct {
	Name string
	Data []byte
}

// Engine recognizes text in a decoded image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
}

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP data.
func Decode(in Image) (image.Image, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidImage, in.Name)
	}
	img, _, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImage, in.Name, err)
	}
	return img, nil
}

// Extract decodes every image up front, then runs OCR in upload order and
// concatenates the pages separated by newlines.
func Extract(ctx context.Context, engine Engine, images []Image, lang string) (string, error) {
	if engine == nil {
		return "", errors.New("ocr engine is required")
	}
	decoded := make([]image.Image, 0, len(images))
	for _, in := range images {
		img, err := Decode(in)
		if err != nil {
			return "", err
		}
		decoded = append(decoded, img)
	}

	var sb strings.Builder
	for i, img := range decoded {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := engine.Recognize(ctx, img, lang)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExtraction, images[i].Name, err)
		}
		sb.WriteString("\n")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
