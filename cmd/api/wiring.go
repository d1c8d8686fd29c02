package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"imagejobs/internal/infra"
	"imagejobs/internal/jobs"
	"imagejobs/internal/providers/genai"
	"imagejobs/internal/storage"
)

// newArtifactStore returns the configured store and, for the filesystem
// driver, the directory the API should serve under /static.
func newArtifactStore(ctx context.Context, cfg *infra.Config) (jobs.ArtifactStore, string, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	default:
		dir := cfg.StoragePath
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		store, err := storage.NewFileStore(dir, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BasePath(), nil
	}
}

// newModelClient builds the Gemini client for the configured transport. The
// returned close func is always safe to call.
func newModelClient(ctx context.Context, cfg *infra.Config, apiKey string, logger infra.Logger) (jobs.ModelClient, func(), error) {
	source := genai.NewSourceFetcher(genai.SourceOptions{
		HTTPClient: &http.Client{Timeout: cfg.SourceFetchTimeout},
		MaxBytes:   cfg.SourceMaxBytes,
	})

	switch cfg.ModelTransport {
	case infra.ModelTransportSDK:
		client, err := genai.NewSDKClient(ctx, genai.SDKOptions{
			APIKey:  apiKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.ModelTimeout,
			Source:  source,
			Logger:  &logger,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("api: close genai sdk client")
			}
		}, nil
	default:
		client, err := genai.NewClient(genai.Options{
			APIKey:     apiKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			HTTPClient: &http.Client{Timeout: cfg.ModelTimeout},
			Source:     source,
			Logger:     &logger,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("configure gemini client: %w", err)
		}
		return client, func() {}, nil
	}
}
