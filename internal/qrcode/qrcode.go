// Package qrcode renders provisioning URIs as PNG QR codes.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when content is empty or only whitespace.
	ErrEmptyContent = errors.New("qr content cannot be empty")
	// ErrEncode is returned when the QR code cannot be generated.
	ErrEncode = errors.New("failed to generate QR code")
)

// DefaultSize is the PNG edge length in pixels used when size <= 0.
const DefaultSize = 256

// Encoder produces PNG images. It is safe for concurrent use.
type Encoder struct {
	size  int
	level skipqrcode.RecoveryLevel
}

// NewEncoder returns an Encoder with low error correction, which keeps
// otpauth URIs at the smallest QR version.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size, level: skipqrcode.Low}
}

// Encode renders content as a PNG.
func (e *Encoder) Encode(content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	png, err := skipqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return png, nil
}
