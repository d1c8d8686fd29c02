package domain

import (
	"errors"
	"testing"
)

func TestValidatorGenerateTrimsPrompt(t *testing.T) {
	v := NewValidator(nil)
	got, err := v.Generate(GenerateRequest{OwnerID: " user-1 ", Prompt: "  a red bicycle \n"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got.Prompt != "a red bicycle" {
		t.Fatalf("Prompt = %q, want trimmed", got.Prompt)
	}
	if got.OwnerID != "user-1" {
		t.Fatalf("OwnerID = %q", got.OwnerID)
	}
}

func TestValidatorComposesPrompt(t *testing.T) {
	v := NewValidator(nil)
	decomposed := "cafe\u0301 au lait"
	got, err := v.Generate(GenerateRequest{OwnerID: "user-1", Prompt: " " + decomposed})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got.Prompt != "caf\u00e9 au lait" {
		t.Fatalf("Prompt = %q, want composed form", got.Prompt)
	}

	edit, err := v.Edit(EditRequest{OwnerID: "user-1", SourceArtifactRef: "https://cdn.example.com/a.png", Prompt: decomposed})
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if edit.Prompt != "caf\u00e9 au lait" {
		t.Fatalf("edit Prompt = %q, want composed form", edit.Prompt)
	}
}

func TestValidatorRejectsBlankPrompt(t *testing.T) {
	v := NewValidator(nil)
	for _, prompt := range []string{"", "   ", "\t\n"} {
		_, err := v.Generate(GenerateRequest{OwnerID: "user-1", Prompt: prompt})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("prompt %q: expected validation error, got %v", prompt, err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "prompt" {
			t.Fatalf("prompt %q: expected prompt field error, got %#v", prompt, err)
		}
	}
}

func TestValidatorRequiresOwner(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Generate(GenerateRequest{Prompt: "cat"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "owner_id" {
		t.Fatalf("expected owner_id error, got %v", err)
	}
}

func TestValidatorEditSourceRef(t *testing.T) {
	v := NewValidator(nil)
	cases := []struct {
		name string
		ref  string
		ok   bool
	}{
		{"https", "https://cdn.example.com/images/a.png", true},
		{"http with port", "http://localhost:8080/static/images/u/1.png", true},
		{"empty", "", false},
		{"relative", "/static/images/a.png", false},
		{"no scheme", "cdn.example.com/a.png", false},
		{"garbage", "not a url", false},
		{"ftp", "ftp://example.com/a.png", false},
		{"missing host", "https:///a.png", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Edit(EditRequest{OwnerID: "user-1", SourceArtifactRef: tc.ref, Prompt: "make it blue"})
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidatorEditAllowlist(t *testing.T) {
	v := NewValidator([]string{" CDN.example.com "})
	if _, err := v.Edit(EditRequest{OwnerID: "u", SourceArtifactRef: "https://cdn.example.com/a.png", Prompt: "p"}); err != nil {
		t.Fatalf("allowed host rejected: %v", err)
	}
	_, err := v.Edit(EditRequest{OwnerID: "u", SourceArtifactRef: "https://evil.example.net/a.png", Prompt: "p"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for foreign host, got %v", err)
	}
}
