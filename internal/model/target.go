package model

import (
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// TargetStatus represents a target's position in the pipeline state machine.
type TargetStatus string

const (
	StatusQueued     TargetStatus = "queued"
	StatusExtracting TargetStatus = "extracting"
	StatusExtracted  TargetStatus = "extracted"
	StatusGenerating TargetStatus = "generating"
	StatusGenerated  TargetStatus = "generated"
	StatusExported   TargetStatus = "exported"
	StatusFailed     TargetStatus = "failed"
)

// Terminal returns true for statuses that permit no further transitions.
func (s TargetStatus) Terminal() bool {
	return s == StatusExported || s == StatusFailed
}

// canTransition is the forward adjacency of the pipeline state machine.
// Failed is reachable from every non-terminal status.
var canTransition = map[TargetStatus][]TargetStatus{
	StatusQueued:     {StatusExtracting, StatusFailed},
	StatusExtracting: {StatusExtracted, StatusFailed},
	StatusExtracted:  {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusGenerated, StatusFailed},
	StatusGenerated:  {StatusExported, StatusFailed},
}

// Target is one URL-plus-spec unit of pipeline work. It is created when
// enqueued and mutated only by the pipeline coordinator; once Exported or
// Failed it never changes again.
type Target struct {
	ID  string `json:"id" yaml:"-"`
	URL string `json:"url" yaml:"url"`

	// Spec optionally overrides the default extraction selectors.
	Spec *ExtractionSpec `json:"spec,omitempty" yaml:"spec,omitempty"`

	// PromptTemplate optionally overrides the run-level prompt template.
	PromptTemplate string `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`

	Status           TargetStatus `json:"status" yaml:"-"`
	ExtractAttempts  int          `json:"extract_attempts" yaml:"-"`
	GenerateAttempts int          `json:"generate_attempts" yaml:"-"`
	FailureKind      FailureKind  `json:"failure_kind,omitempty" yaml:"-"`
	LastErr          string       `json:"last_error,omitempty" yaml:"-"`

	Record     *ExtractionRecord `json:"record,omitempty" yaml:"-"`
	Generation *GenerationResult `json:"generation,omitempty" yaml:"-"`

	EnqueuedAt time.Time `json:"enqueued_at" yaml:"-"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"-"`
}

// Advance moves the target to the next status, enforcing the state machine.
// Transitions out of a terminal status are rejected.
func (t *Target) Advance(next TargetStatus) error {
	if t.Status.Terminal() {
		return eris.Errorf("target %s: illegal transition %s -> %s (terminal)", t.ID, t.Status, next)
	}
	for _, allowed := range canTransition[t.Status] {
		if next == allowed {
			t.Status = next
			if next.Terminal() {
				t.FinishedAt = time.Now().UTC()
			}
			return nil
		}
	}
	return eris.Errorf("target %s: illegal transition %s -> %s", t.ID, t.Status, next)
}

// Fail marks the target terminally failed, recording the reason. Every
// failed target carries a kind and the last-seen error detail.
func (t *Target) Fail(kind FailureKind, err error) {
	if t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.FailureKind = kind
	if err != nil {
		t.LastErr = err.Error()
	}
	t.FinishedAt = time.Now().UTC()
}

// Excerpt returns the leading chars of the generated text for tabular
// output. The cut backs up to a rune boundary so the excerpt is always
// valid UTF-8.
func (t *Target) Excerpt(n int) string {
	if t.Generation == nil {
		return ""
	}
	text := t.Generation.Text
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n] + "…"
}
