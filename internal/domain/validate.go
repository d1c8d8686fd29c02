package domain

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// GenerateRequest asks for a new artifact synthesized from Prompt.
type GenerateRequest struct {
	OwnerID string `json:"owner_id" validate:"required"`
	Prompt  string `json:"prompt" validate:"required"`
}

// EditRequest asks for SourceArtifactRef to be transformed according to Prompt.
type EditRequest struct {
	OwnerID           string `json:"owner_id" validate:"required"`
	SourceArtifactRef string `json:"image_url" validate:"required,url"`
	Prompt            string `json:"prompt" validate:"required"`
}

// Validator checks inbound request shape. It never touches durable state and
// never calls external systems, so it can run before a job id exists.
type Validator struct {
	v            *validator.Validate
	allowedHosts map[string]struct{}
}

// NewValidator builds a Validator. An empty allowlist accepts any source host.
func NewValidator(allowedSourceHosts []string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	hosts := make(map[string]struct{}, len(allowedSourceHosts))
	for _, h := range allowedSourceHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &Validator{v: v, allowedHosts: hosts}
}

// Generate returns the normalized request or a *ValidationError.
func (val *Validator) Generate(req GenerateRequest) (GenerateRequest, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.Prompt = normalizePrompt(req.Prompt)
	if err := val.check(req); err != nil {
		return GenerateRequest{}, err
	}
	return req, nil
}

// Edit returns the normalized request or a *ValidationError.
func (val *Validator) Edit(req EditRequest) (EditRequest, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.Prompt = normalizePrompt(req.Prompt)
	req.SourceArtifactRef = strings.TrimSpace(req.SourceArtifactRef)
	if err := val.check(req); err != nil {
		return EditRequest{}, err
	}
	u, err := url.Parse(req.SourceArtifactRef)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return EditRequest{}, &ValidationError{Field: "image_url", Message: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return EditRequest{}, &ValidationError{Field: "image_url", Message: "must use http or https"}
	}
	if len(val.allowedHosts) > 0 {
		if _, ok := val.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
			return EditRequest{}, &ValidationError{Field: "image_url", Message: "host is not allowed"}
		}
	}
	return req, nil
}

// normalizePrompt trims the prompt and folds it to NFC so visually equal
// prompts are stored byte-equal.
func normalizePrompt(p string) string {
	return norm.NFC.String(strings.TrimSpace(p))
}

func (val *Validator) check(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := "is invalid"
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "url":
			msg = "must be an absolute URL"
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}
