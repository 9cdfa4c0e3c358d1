package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	domainRepo "github.com/sangkips/quotation-api/internal/domain/repository"
)

const logoDir = "logos"

var allowedLogoTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type localLogoStorage struct {
	root    string
	maxSize int64
}

// NewLocalLogoStorage stores logos below root/logos. Uploads larger than
// maxSize bytes or that do not sniff as PNG, JPEG or WEBP are rejected.
func NewLocalLogoStorage(root string, maxSize int64) (domainRepo.LogoStorage, error) {
	if err := os.MkdirAll(filepath.Join(root, logoDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logo directory: %w", err)
	}
	return &localLogoStorage{root: root, maxSize: maxSize}, nil
}

func (s *localLogoStorage) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", domainRepo.ErrLogoTooLarge
	}

	ext, ok := allowedLogoTypes[mimetype.Detect(data).String()]
	if !ok {
		return "", domainRepo.ErrLogoUnsupported
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := logoDir + "/" + uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(ref)), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write logo: %w", err)
	}
	return ref, nil
}

func (s *localLogoStorage) Open(ctx context.Context, ref string) ([]byte, string, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", domainRepo.ErrLogoNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, mimetype.Detect(data).String(), nil
}

func (s *localLogoStorage) Delete(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path resolves a reference produced by Save, refusing anything else.
func (s *localLogoStorage) path(ref string) (string, error) {
	name := strings.TrimPrefix(ref, logoDir+"/")
	if name == ref || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", domainRepo.ErrLogoNotFound
	}
	return filepath.Join(s.root, logoDir, name), nil
}
