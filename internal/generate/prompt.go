package generate

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/prospector/internal/model"
)

// DefaultPromptTemplate is the prompt used when a target carries no
// override. Placeholders are substituted from the extraction record.
const DefaultPromptTemplate = `You are preparing a prospecting brief from a scraped web page.

Page: {title}
Source: {url}

Extracted fields:
{fields}

Page content:
{body}

Write a concise brief covering what this organization does, who it serves, and any signals relevant to outreach. Use only the content above.`

// BuildRequest assembles a model request from a record and template.
// A body longer than budget bytes is cut at the budget (backed up to the
// nearest rune boundary) and the request records that truncation occurred.
// The same record, template, and budget always produce the same request.
func BuildRequest(record *model.ExtractionRecord, template string, budget int) model.GenerationRequest {
	if template == "" {
		template = DefaultPromptTemplate
	}

	body := record.Body
	truncated := false
	if budget > 0 && len(body) > budget {
		// Back the cut up to a rune boundary so the prompt stays valid
		// UTF-8; the budget is a byte ceiling, never exceeded.
		cut := budget
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
		truncated = true
	}

	var fields strings.Builder
	for _, f := range record.Fields {
		fields.WriteString("- ")
		fields.WriteString(f.Name)
		fields.WriteString(": ")
		fields.WriteString(f.Value)
		fields.WriteString("\n")
	}

	prompt := strings.NewReplacer(
		"{title}", record.Title,
		"{url}", record.URL,
		"{fields}", strings.TrimRight(fields.String(), "\n"),
		"{body}", body,
	).Replace(template)

	return model.GenerationRequest{
		Prompt:    prompt,
		Truncated: truncated,
	}
}
