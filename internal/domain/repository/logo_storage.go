package repository

import (
	"context"
	"errors"
	"io"
)

var (
	ErrLogoTooLarge    = errors.New("logo exceeds maximum size")
	ErrLogoUnsupported = errors.New("logo content type not allowed")
	ErrLogoNotFound    = errors.New("logo not found")
)

// LogoStorage owns uploaded quotation logos. References it returns are opaque
// to everything else.
type LogoStorage interface {
	Save(ctx context.Context, r io.Reader) (ref string, err error)
	Open(ctx context.Context, ref string) (data []byte, contentType string, err error)
	// Delete removes a logo. Deleting a missing logo is not an error.
	Delete(ctx context.Context, ref string) error
}
