package genai

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"imagejobs/internal/domain"
)

const (
	defaultSourceType     = "image/jpeg"
	defaultSourceMaxBytes = 20 << 20
)

// SourceOptions configures how source artifacts are downloaded for edits.
type SourceOptions struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// SourceFetcher downloads the artifact an edit request refers to.
type SourceFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewSourceFetcher applies defaults: a 30s client and a 20 MiB size cap.
func NewSourceFetcher(opts SourceOptions) *SourceFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultSourceMaxBytes
	}
	return &SourceFetcher{httpClient: client, maxBytes: maxBytes}
}

// Fetch returns the bytes at ref together with the origin's declared content
// type. Every failure is reported as domain.ErrSourceFetch.
func (f *SourceFetcher) Fetch(ctx context.Context, ref string) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, fmt.Errorf("GET %s: status %d", ref, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, fmt.Errorf("source exceeds %d bytes", f.maxBytes))
	}
	if len(data) == 0 {
		return domain.Artifact{}, domain.Wrap(domain.ErrSourceFetch, fmt.Errorf("source is empty"))
	}

	return domain.Artifact{Data: data, ContentType: sourceType(resp.Header.Get("Content-Type"))}, nil
}

func sourceType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultSourceType
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return defaultSourceType
	}
	return mediaType
}
