package model

import "time"

// FieldSpec names one field to pull from a page: a CSS selector plus
// whether its absence fails the extraction. Specs are evaluated uniformly,
// in declaration order.
type FieldSpec struct {
	Name     string `json:"name" yaml:"name"`
	Selector string `json:"selector" yaml:"selector"`
	Required bool   `json:"required" yaml:"required"`
}

// ExtractionSpec declares what to pull from rendered markup.
type ExtractionSpec struct {
	// Title and Body are CSS selectors; empty values fall back to
	// "title" and "body".
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`

	Fields []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Wait is the CSS selector the navigation waits on before the page
	// counts as ready. Defaults to "body".
	Wait string `json:"wait,omitempty" yaml:"wait,omitempty"`
}

// Field is one extracted (name, value) pair. Order is preserved from the
// spec that produced it.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExtractionRecord is the structured content pulled from one page.
// Records are immutable once created; re-extraction replaces the whole
// record rather than mutating it.
type ExtractionRecord struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Fields      []Field   `json:"fields,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// FieldValue returns the value of a named field, or "" if absent.
func (r *ExtractionRecord) FieldValue(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
