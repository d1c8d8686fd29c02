package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	gogenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"imagejobs/internal/domain"
	"imagejobs/internal/infra"
)

// SDKOptions configures the SDK-backed client. Timeout bounds each
// generateContent call; zero means no limit.
type SDKOptions struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Source   *SourceFetcher
	Logger   *infra.Logger
}

// SDKClient talks to Gemini through the official Go SDK. Responses are
// converted into Response so extraction behaves exactly like the REST client.
type SDKClient struct {
	client  *gogenai.Client
	model   string
	timeout time.Duration
	source  *SourceFetcher
	logger  *infra.Logger
	call    generateFunc
}

type generateFunc func(ctx context.Context, parts ...gogenai.Part) (*gogenai.GenerateContentResponse, error)

// NewSDKClient creates the SDK client. Close must be called on shutdown.
func NewSDKClient(ctx context.Context, opts SDKOptions) (*SDKClient, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	client, err := gogenai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("genai: create sdk client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	source := opts.Source
	if source == nil {
		source = NewSourceFetcher(SourceOptions{})
	}
	return &SDKClient{
		client:  client,
		model:   model,
		timeout: opts.Timeout,
		source:  source,
		logger:  loggerOrDiscard(opts.Logger),
		call:    client.GenerativeModel(model).GenerateContent,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *SDKClient) Model() string {
	return c.model
}

// Synthesize produces artifact bytes from a text prompt.
func (c *SDKClient) Synthesize(ctx context.Context, prompt string) (domain.Artifact, error) {
	return c.generate(ctx, gogenai.Text(prompt))
}

// Transform fetches sourceRef and asks the model to edit it according to prompt.
func (c *SDKClient) Transform(ctx context.Context, sourceRef, prompt string) (domain.Artifact, error) {
	src, err := c.source.Fetch(ctx, sourceRef)
	if err != nil {
		return domain.Artifact{}, err
	}
	return c.generate(ctx, gogenai.Text(prompt), gogenai.Blob{MIMEType: src.ContentType, Data: src.Data})
}

// Close releases the underlying connection.
func (c *SDKClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *SDKClient) generate(ctx context.Context, parts ...gogenai.Part) (domain.Artifact, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.call(ctx, parts...)
	if err != nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrUpstream, fmt.Errorf("generate content: %w", err))
	}
	if resp == nil {
		return domain.Artifact{}, domain.Wrap(domain.ErrUpstream, fmt.Errorf("empty sdk response"))
	}
	c.logger.Debug().Str("model", c.model).Int("candidates", len(resp.Candidates)).Msg("genai: sdk generateContent finished")
	return ExtractPayload(fromSDKResponse(resp))
}

func fromSDKResponse(resp *gogenai.GenerateContentResponse) Response {
	var out Response
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != gogenai.BlockReasonUnspecified {
		out.PromptFeedback = &PromptFeedback{BlockReason: resp.PromptFeedback.BlockReason.String()}
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		converted := Candidate{}
		switch cand.FinishReason {
		case gogenai.FinishReasonUnspecified:
		case gogenai.FinishReasonStop:
			converted.FinishReason = "STOP"
		default:
			converted.FinishReason = cand.FinishReason.String()
		}
		if cand.Content != nil {
			converted.Content.Role = cand.Content.Role
			for _, part := range cand.Content.Parts {
				switch p := part.(type) {
				case gogenai.Blob:
					converted.Content.Parts = append(converted.Content.Parts, Part{
						InlineData: &InlineData{MimeType: p.MIMEType, Data: p.Data},
					})
				case gogenai.Text:
					converted.Content.Parts = append(converted.Content.Parts, Part{Text: string(p)})
				}
			}
		}
		out.Candidates = append(out.Candidates, converted)
	}
	return out
}
