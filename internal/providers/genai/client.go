package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagejobs/internal/domain"
	"imagejobs/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-image"

	maxErrorBody = 4 << 10
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Source     *SourceFetcher
	Logger     *infra.Logger
}

// Client calls the Gemini generateContent REST endpoint directly.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	source     *SourceFetcher
	logger     *infra.Logger
}

type generateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with a 120s timeout will be created.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	source := opts.Source
	if source == nil {
		source = NewSourceFetcher(SourceOptions{})
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		source:     source,
		logger:     loggerOrDiscard(opts.Logger),
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthesize produces artifact bytes from a text prompt.
func (c *Client) Synthesize(ctx context.Context, prompt string) (domain.Artifact, error) {
	return c.generate(ctx, []Part{{Text: prompt}})
}

// Transform fetches sourceRef and asks the model to edit it according to prompt.
func (c *Client) Transform(ctx context.Context, sourceRef, prompt string) (domain.Artifact, error) {
	src, err := c.source.Fetch(ctx, sourceRef)
	if err != nil {
		return domain.Artifact{}, err
	}
	return c.generate(ctx, []Part{
		{Text: prompt},
		{InlineData: &InlineData{MimeType: src.ContentType, Data: src.Data}},
	})
}

func (c *Client) generate(ctx context.Context, parts []Part) (domain.Artifact, error) {
	payload := generateContentRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	start := time.Now()
	var resp Response
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invokeGemini(ctx, path, payload, &resp); err != nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrUpstream, err)
	}

	artifact, err := ExtractPayload(resp)
	c.logger.Debug().
		Str("model", c.model).
		Int("candidates", len(resp.Candidates)).
		Int("bytes", len(artifact.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("genai: generateContent finished")
	return artifact, err
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if msg := strings.TrimSpace(string(data)); msg != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func loggerOrDiscard(l *infra.Logger) *infra.Logger {
	if l != nil {
		return l
	}
	discard := infra.Logger(zerolog.New(io.Discard))
	return &discard
}
