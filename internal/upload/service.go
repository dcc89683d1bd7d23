package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var (
	ErrUpload          = errors.New("upload failed")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmptyFile       = errors.New("empty file")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidOwner    = errors.New("invalid owner id")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Service stores product images and hands out their public URLs.
type Service struct {
	storage Storage
	baseURL string
	log     *slog.Logger
	now     func() time.Time
}

func NewService(storage Storage, publicBaseURL string, log *slog.Logger) *Service {
	return &Service{
		storage: storage,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		log:     log,
		now:     time.Now,
	}
}

// Upload stores data under products/<ownerID>/<unix-nanos>-<random><ext> and
// returns its public URL. Storage failures wrap ErrUpload.
func (s *Service) Upload(ctx context.Context, data []byte, ownerID string) (string, error) {
	if !ownerPattern.MatchString(ownerID) {
		return "", ErrInvalidOwner
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	objectPath := s.objectPath(ownerID, ext)
	if err := s.storage.Put(ctx, objectPath, contentType, data); err != nil {
		s.log.ErrorContext(ctx, "image upload failed", "owner_id", ownerID, "path", objectPath, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	s.log.InfoContext(ctx, "image uploaded", "owner_id", ownerID, "path", objectPath, "bytes", len(data))
	return s.URL(objectPath), nil
}

func (s *Service) Open(ctx context.Context, objectPath string) (io.ReadCloser, string, error) {
	clean := path.Clean("/" + objectPath)[1:]
	return s.storage.Open(ctx, clean)
}

func (s *Service) URL(objectPath string) string {
	return s.baseURL + "/media/" + objectPath
}

func (s *Service) objectPath(ownerID, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("products/%s/%d-%s%s", ownerID, s.now().UnixNano(), suffix, ext)
}
