package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// LocalUploadArchive implements port.UploadArchive on the local filesystem
type LocalUploadArchive struct {
	baseDir string
	now     func() time.Time
	logger  *zap.Logger
}

var _ port.UploadArchive = (*LocalUploadArchive)(nil)

// NewLocalUploadArchive creates an archive rooted at baseDir
func NewLocalUploadArchive(baseDir string, logger *zap.Logger) *LocalUploadArchive {
	return &LocalUploadArchive{
		baseDir: baseDir,
		now:     time.Now,
		logger:  logger,
	}
}

// Save writes content under dir with a unique name derived from filename.
// A missing extension is taken from the sniffed content type.
func (s *LocalUploadArchive) Save(ctx context.Context, dir, filename string, content []byte) (string, error) {
	name := SanitizeName(filepath.Base(filename))
	if filepath.Ext(name) == "" {
		name += mimetype.Detect(content).Extension()
	}
	rel := filepath.Join(SanitizePath(dir),
		fmt.Sprintf("%s-%s-%s", s.now().Format("150405"), uuid.NewString()[:8], name))

	fullPath := s.fullPath(rel)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create archive directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Upload archived",
		zap.String("path", rel),
		zap.Int("size", len(content)))
	return rel, nil
}

// Read returns an archived upload by its relative path
func (s *LocalUploadArchive) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := s.fullPath(path)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("upload %s: %w", path, port.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Delete removes an archived upload. Deleting a missing file succeeds.
func (s *LocalUploadArchive) Delete(ctx context.Context, path string) error {
	fullPath := s.fullPath(path)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalUploadArchive) fullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// validatePath checks that the path stays within baseDir
func (s *LocalUploadArchive) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// SanitizeName keeps letters, digits, dash, underscore and dot. Accented
// letters are dropped, so "Napi infó.jpg" becomes "Napiinf.jpg".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

// SanitizePath sanitizes every segment of a slash separated directory
func SanitizePath(dir string) string {
	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(dir), "/") {
		if p = unsafeChars.ReplaceAllString(strings.ReplaceAll(p, "..", ""), ""); p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return filepath.Join(parts...)
}
