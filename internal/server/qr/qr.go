// Package qr renders enrollment URIs as PNG QR codes.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrEmptyContent = errors.New("qr: empty content")

type Renderer struct {
	size int
}

// NewRenderer returns a renderer producing size×size images. Non-positive
// sizes fall back to DefaultSize.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size}
}

// Render encodes content with medium error correction.
func (r *Renderer) Render(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	png, err := qrcode.Encode(content, qrcode.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// DataURI wraps PNG bytes for direct use in an <img src>.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
