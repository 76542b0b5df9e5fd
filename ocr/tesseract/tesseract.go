// Package tesseract implements ocr.Engine on top of gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Engine runs tesseract through a fresh gosseract client per image.
type Engine struct {
	tessdataPrefix string
}

// New builds an Engine. tessdataPrefix may be empty to use tesseract's default.
func New(tessdataPrefix string) *Engine {
	return &Engine{tessdataPrefix: tessdataPrefix}
}

// Recognize re-encodes img as PNG so every decodable format reaches
// leptonica in one it understands. The text is returned untrimmed; callers
// strip the joined pages.
func (e *Engine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	c := gosseract.NewClient()
	defer c.Close()
	if e.tessdataPrefix != "" {
		c.SetTessdataPrefix(e.tessdataPrefix)
	}
	if lang != "" {
		if err := c.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
