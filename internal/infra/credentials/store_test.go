package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	model   string
	err     error
	queried int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried++
	return stubRow{token: s.token, model: s.model, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	model string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 2 {
		return errors.New("expected token and model destinations")
	}
	values := []string{r.token, r.model}
	for i, d := range dest {
		ptr, ok := d.(*string)
		if !ok {
			return errors.New("invalid dest")
		}
		*ptr = values[i]
	}
	return nil
}

func TestGeminiAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.GeminiAPIKey(context.Background())
	if err != nil {
		t.Fatalf("GeminiAPIKey error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestGeminiAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.GeminiAPIKey(context.Background())
	if err != nil {
		t.Fatalf("GeminiAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSetGeminiAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetGeminiAPIKey(context.Background(), "secret", "gemini-2.5-flash-image"); err != nil {
		t.Fatalf("SetGeminiAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetGeminiAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetGeminiAPIKey(context.Background(), " ", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestSetGeminiAPIKeyStoresModel(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetGeminiAPIKey(context.Background(), "secret", "custom-model"); err != nil {
		t.Fatalf("SetGeminiAPIKey error: %v", err)
	}
	raw, ok := exec.exec.args[2].([]byte)
	if !ok || string(raw) != `{"model":"custom-model"}` {
		t.Fatalf("unexpected properties %T %s", exec.exec.args[2], exec.exec.args[2])
	}
}

func TestResolveGeminiPrefersConfigured(t *testing.T) {
	exec := &stubExecutor{token: "stored", model: "stored-model"}
	got, err := NewStore(exec).ResolveGemini(context.Background(), Gemini{APIKey: " env-key ", Model: "env-model"})
	if err != nil {
		t.Fatalf("ResolveGemini error: %v", err)
	}
	if got.APIKey != "env-key" || got.Model != "env-model" {
		t.Fatalf("unexpected credentials %+v", got)
	}
	if exec.queried != 0 {
		t.Fatalf("expected no lookup when both values are configured, got %d", exec.queried)
	}
}

func TestResolveGeminiFallsBackToStore(t *testing.T) {
	store := NewStore(&stubExecutor{token: " stored ", model: " stored-model "})
	got, err := store.ResolveGemini(context.Background(), Gemini{})
	if err != nil {
		t.Fatalf("ResolveGemini error: %v", err)
	}
	if got.APIKey != "stored" || got.Model != "stored-model" {
		t.Fatalf("unexpected credentials %+v", got)
	}
}

func TestResolveGeminiUsesStoredModelWithConfiguredKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: "stored", model: "stored-model"})
	got, err := store.ResolveGemini(context.Background(), Gemini{APIKey: "env-key"})
	if err != nil {
		t.Fatalf("ResolveGemini error: %v", err)
	}
	if got.APIKey != "env-key" || got.Model != "stored-model" {
		t.Fatalf("unexpected credentials %+v", got)
	}
}

func TestResolveGeminiMissing(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	if _, err := store.ResolveGemini(context.Background(), Gemini{Model: "m"}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestResolveGeminiLookupFailure(t *testing.T) {
	boom := errors.New("db down")
	store := NewStore(&stubExecutor{err: boom})
	if _, err := store.ResolveGemini(context.Background(), Gemini{APIKey: "env-key"}); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
