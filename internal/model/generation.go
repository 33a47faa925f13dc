package model

import "time"

// GenerationRequest is a fully built model request. It is derived
// deterministically from an ExtractionRecord and a prompt template, so the
// same record and template always produce the same request.
type GenerationRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	// Truncated records that the record body was cut to the character
	// budget while building the prompt.
	Truncated bool `json:"truncated"`
}

// TokenUsage tracks token consumption for a generation call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// GenerationResult is the derived text produced for one target.
// Immutable once produced.
type GenerationResult struct {
	Text        string     `json:"text"`
	Model       string     `json:"model"`
	Usage       TokenUsage `json:"usage"`
	Truncated   bool       `json:"truncated"`
	Attempts    int        `json:"attempts"`
	CompletedAt time.Time  `json:"completed_at"`
}
