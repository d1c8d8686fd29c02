package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"imagejobs/internal/domain"
)

// FileStore persists artifacts onto the local filesystem. It is intended for
// development and single-node deployments; the API serves BasePath under the
// public base URL.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath whose references
// resolve under baseURL.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: baseURL}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes data under key and returns its public URL. The content type is
// implied by the key's extension when the file is served back.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", domain.Wrap(domain.ErrStorage, errors.New("no store configured"))
	}
	if err := ctx.Err(); err != nil {
		return "", domain.Wrap(domain.ErrStorage, err)
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", domain.Wrap(domain.ErrStorage, err)
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", domain.Wrap(domain.ErrStorage, fmt.Errorf("ensure directory: %w", err))
	}
	tmp := fullPath + ".tmp"
	if err := writeFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", domain.Wrap(domain.ErrStorage, fmt.Errorf("write file: %w", err))
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", domain.Wrap(domain.ErrStorage, fmt.Errorf("commit file: %w", err))
	}
	return publicURL(s.baseURL, cleanKey), nil
}

var writeFile = os.WriteFile

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("invalid key")
	}
	return cleaned, nil
}

func publicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}
