package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Extractor converts rendered markup into structured records. Extraction
// is deterministic: identical markup and spec always yield an identical
// record (the timestamp aside).
type Extractor struct {
	now func() time.Time
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{now: time.Now}
}

// nonContentSelector matches markup that never carries page content.
const nonContentSelector = "script, style, noscript, nav, footer, iframe, svg"

// Extract parses raw markup and applies the spec to pull title, body, and
// fields. A missing required field or an empty body is a content error
// (ErrExtractionEmpty), distinct from transient navigation failures.
func (e *Extractor) Extract(raw, url string, spec model.ExtractionSpec) (*model.ExtractionRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse markup")
	}

	doc.Find(nonContentSelector).Remove()

	titleSel := spec.Title
	if titleSel == "" {
		titleSel = "title"
	}
	bodySel := spec.Body
	if bodySel == "" {
		bodySel = "body"
	}

	title := Normalize(doc.Find(titleSel).First().Text())
	body := Normalize(doc.Find(bodySel).First().Text())

	if body == "" {
		return nil, eris.Wrap(model.ErrExtractionEmpty, "extract: body selector "+bodySel+" matched no content")
	}

	// Fields are evaluated uniformly, in declaration order.
	fields := make([]model.Field, 0, len(spec.Fields))
	for _, fs := range spec.Fields {
		value := Normalize(doc.Find(fs.Selector).First().Text())
		if value == "" && fs.Required {
			return nil, eris.Wrap(model.ErrExtractionEmpty, "extract: required field "+fs.Name+" is empty")
		}
		fields = append(fields, model.Field{Name: fs.Name, Value: value})
	}

	return &model.ExtractionRecord{
		URL:         url,
		Title:       title,
		Body:        body,
		Fields:      fields,
		ExtractedAt: e.now().UTC(),
	}, nil
}

var (
	spaceRe   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace, trims line edges,
// and caps blank runs at one empty line. Applied to every extracted
// string so repeated extractions are byte-identical.
func Normalize(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	s = newlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
