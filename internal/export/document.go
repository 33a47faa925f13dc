package export

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// DocumentSink writes one Markdown document per target with the full
// extracted and generated text.
type DocumentSink struct {
	dir string
}

// NewDocumentSink creates a sink writing under dir.
func NewDocumentSink(dir string) *DocumentSink {
	return &DocumentSink{dir: dir}
}

// ExportDocument renders and writes the document artifact for a target,
// returning the written path. Write failures surface ErrExportIO.
func (s *DocumentSink) ExportDocument(t *model.Target) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", eris.Wrap(model.ErrExportIO, err.Error())
	}

	path := filepath.Join(s.dir, Slug(t.URL)+".md")
	if err := os.WriteFile(path, []byte(RenderDocument(t)), 0o644); err != nil {
		return "", eris.Wrap(model.ErrExportIO, err.Error())
	}
	return path, nil
}

// RenderDocument builds the Markdown body for a target's document.
func RenderDocument(t *model.Target) string {
	var b strings.Builder

	title := t.URL
	if t.Record != nil && t.Record.Title != "" {
		title = t.Record.Title
	}
	b.WriteString("# " + title + "\n\n")
	b.WriteString("Source: " + t.URL + "\n\n")

	if t.Record != nil {
		b.WriteString("Extracted: " + t.Record.ExtractedAt.Format(time.RFC3339) + "\n\n")

		if len(t.Record.Fields) > 0 {
			b.WriteString("## Fields\n\n")
			for _, f := range t.Record.Fields {
				b.WriteString("- **" + f.Name + "**: " + f.Value + "\n")
			}
			b.WriteString("\n")
		}
	}

	if t.Generation != nil {
		b.WriteString("## Generated Report\n\n")
		b.WriteString(t.Generation.Text + "\n\n")
		if t.Generation.Truncated {
			b.WriteString("_Source content was truncated to the context budget._\n\n")
		}
	}

	if t.Record != nil {
		b.WriteString("## Extracted Content\n\n")
		b.WriteString(t.Record.Body + "\n")
	}

	return b.String()
}

// Slug converts a URL into a safe, flat filename stem. Deterministic so
// re-exporting a target overwrites its own document.
func Slug(url string) string {
	s := strings.ToLower(url)
	for _, prefix := range []string{"https://", "http://", "www."} {
		s = strings.TrimPrefix(s, prefix)
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._-")
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		out = "target"
	}
	return out
}
