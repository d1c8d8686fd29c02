package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imagejobs/internal/infra"
	"imagejobs/internal/sqlinline"
)

const ProviderGemini = "gemini"

// ErrMissingKey is returned when neither the environment nor the database
// holds a model API key.
var ErrMissingKey = errors.New("gemini api key is not configured")

// Gemini is the key and optional model the API process talks to Gemini with.
// An empty Model means the client default.
type Gemini struct {
	APIKey string
	Model  string
}

// Store reads and writes provider tokens in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// GeminiAPIKey returns the stored key, or "" when none is saved.
func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	stored, err := s.gemini(ctx)
	return stored.APIKey, err
}

// ResolveGemini merges configured values with the stored ones. Configured
// values win field by field; the row is only read when something is missing.
func (s *Store) ResolveGemini(ctx context.Context, configured Gemini) (Gemini, error) {
	out := Gemini{
		APIKey: strings.TrimSpace(configured.APIKey),
		Model:  strings.TrimSpace(configured.Model),
	}
	if out.APIKey == "" || out.Model == "" {
		stored, err := s.gemini(ctx)
		if err != nil {
			return Gemini{}, fmt.Errorf("load gemini credentials: %w", err)
		}
		if out.APIKey == "" {
			out.APIKey = stored.APIKey
		}
		if out.Model == "" {
			out.Model = stored.Model
		}
	}
	if out.APIKey == "" {
		return Gemini{}, ErrMissingKey
	}
	return out, nil
}

// SetGeminiAPIKey stores key, recording model next to it when given.
func (s *Store) SetGeminiAPIKey(ctx context.Context, key, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	props := map[string]any{}
	if model = strings.TrimSpace(model); model != "" {
		props["model"] = model
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderGemini, key, raw)
	return err
}

func (s *Store) gemini(ctx context.Context) (Gemini, error) {
	var out Gemini
	err := s.sql.QueryRow(ctx, sqlinline.QSelectGeminiCredentials, ProviderGemini).Scan(&out.APIKey, &out.Model)
	if err != nil {
		if infra.IsNoRows(err) {
			return Gemini{}, nil
		}
		return Gemini{}, err
	}
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.Model = strings.TrimSpace(out.Model)
	return out, nil
}
