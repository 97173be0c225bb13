package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/card-scanner/constants"
	"github.com/joseph-ayodele/card-scanner/internal/common"
)

// ErrUnsupportedFile is returned for uploads without an allowed image extension.
var ErrUnsupportedFile = fmt.Errorf("unsupported or missing extension: %w", common.ErrInvalidInput)

// Store writes uploads into a single directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates root if needed.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("upload dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		logger.Error("failed to create upload dir", "dir", abs, "error", err)
		return nil, err
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute upload directory.
func (s *Store) Root() string { return s.root }

// Save copies r into the store as <uuid>_<base name of filename>.
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (StoredFile, error) {
	var out StoredFile
	original := SanitizeFilename(filename)
	ext := constants.NormalizeExt(filepath.Ext(original))
	if ext == "" || !AllowedExt(ext) {
		s.logger.Info("rejected upload", "filename", filename, "ext", ext)
		return out, ErrUnsupportedFile
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + original
	dst := filepath.Join(s.root, stored)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		s.logger.Error("create upload file error", "path", dst, "error", err)
		return out, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		s.logger.Error("write upload error", "path", dst, "error", err)
		return out, err
	}

	out = StoredFile{
		Path:     dst,
		Filename: stored,
		Original: original,
		Ext:      ext,
		Size:     n,
		HashHex:  hex.EncodeToString(h.Sum(nil)),
		StoredAt: time.Now().UTC(),
	}
	s.logger.Debug("upload stored", "path", dst, "bytes", n, "sha256", out.HashHex)
	return out, nil
}

// SaveFile copies a file already on disk into the store.
func (s *Store) SaveFile(ctx context.Context, path string) (StoredFile, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" || !AllowedExt(ext) {
		return StoredFile{}, ErrUnsupportedFile
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("open error", "path", path, "error", err)
		return StoredFile{}, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("close file error", "path", path, "error", err)
		}
	}(f)
	return s.Save(ctx, filepath.Base(path), f)
}

// Remove deletes a stored file. Paths outside the store are refused.
func (s *Store) Remove(path string) error {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %q is outside the upload dir: %w", path, common.ErrInvalidInput)
	}
	return os.Remove(path)
}
