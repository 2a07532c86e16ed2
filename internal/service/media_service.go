package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"versioned-notes-server/internal/domain"
)

const (
	uploadChunkSize = 1 << 20
	uploadURLPrefix = "/uploads"
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

var safeExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".webm": true, ".mov": true,
}

// MediaService stages uploads on local disk and describes them as MediaRefs.
// Files are served back under /uploads by the HTTP layer.
type MediaService struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger
}

func NewMediaService(dir string, maxBytes int64, log zerolog.Logger) *MediaService {
	return &MediaService{dir: dir, maxBytes: maxBytes, log: log}
}

// Dir is the root directory staged files are written under.
func (s *MediaService) Dir() string {
	return s.dir
}

func normalizeMime(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if safeExtensions[ext] {
		return ext
	}
	return ""
}

func subdirFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return "images"
	}
	return "videos"
}

// Stage copies r to disk. The MIME type is checked before anything is read; the
// copy stops as soon as the byte budget is exceeded and the partial file is
// removed.
func (s *MediaService) Stage(ctx context.Context, r io.Reader, filename, mimeType string) (*domain.MediaRef, error) {
	mt := normalizeMime(mimeType)
	if !allowedMimeTypes[mt] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, mt)
	}

	sub := subdirFor(mt)
	if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + safeExt(filename)
	absPath := filepath.Join(s.dir, sub, name)

	size, err := s.copyLimited(ctx, absPath, r)
	if err != nil {
		if rmErr := os.Remove(absPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.Warn().Err(rmErr).Str("path", absPath).Msg("failed to remove partial upload")
		}
		return nil, err
	}

	original := filename
	if original == "" {
		original = name
	}

	s.log.Debug().Str("path", absPath).Int64("size_bytes", size).Str("mime_type", mt).Msg("staged upload")

	return &domain.MediaRef{
		URL:          path.Join(uploadURLPrefix, sub, name),
		MimeType:     mt,
		SizeBytes:    size,
		OriginalName: original,
	}, nil
}

func (s *MediaService) copyLimited(ctx context.Context, absPath string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(absPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	buf := make([]byte, uploadChunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return 0, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > s.maxBytes {
				out.Close()
				return 0, fmt.Errorf("%w: exceeds %d bytes", domain.ErrTooLarge, s.maxBytes)
			}
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return 0, fmt.Errorf("write upload: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			out.Close()
			return 0, fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close upload file: %w", err)
	}
	return total, nil
}
