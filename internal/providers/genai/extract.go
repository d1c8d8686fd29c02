package genai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"imagejobs/internal/domain"
)

// Response is the transport-independent shape of a generateContent reply.
// The JSON tags match the Gemini REST wire format; inline data is base64 on
// the wire and decoded into Data by encoding/json.
type Response struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

const maxReasonText = 200

// ExtractPayload returns the first part, scanning candidates then parts in
// order, that carries inline binary data. It fails with domain.ErrNoPayload
// when no part does.
func ExtractPayload(resp Response) (domain.Artifact, error) {
	var text, finish string
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return domain.Artifact{
					Data:        part.InlineData.Data,
					ContentType: part.InlineData.MimeType,
				}, nil
			}
			if text == "" {
				text = strings.TrimSpace(part.Text)
			}
		}
		if finish == "" {
			finish = candidate.FinishReason
		}
	}
	return domain.Artifact{}, noPayload(resp, finish, text)
}

func noPayload(resp Response, finish, text string) error {
	var reasons []string
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		reasons = append(reasons, "block reason "+resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		reasons = append(reasons, "no candidates")
	} else if finish != "" && finish != "STOP" {
		reasons = append(reasons, "finish reason "+finish)
	}
	if text != "" {
		if len(text) > maxReasonText {
			cut := maxReasonText
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		reasons = append(reasons, fmt.Sprintf("model said %q", text))
	}
	if len(reasons) == 0 {
		return domain.ErrNoPayload
	}
	return fmt.Errorf("%w (%s)", domain.ErrNoPayload, strings.Join(reasons, "; "))
}
