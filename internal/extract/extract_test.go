package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

const samplePage = `<html>
<head>
  <title>  Acme   Corp — Plumbing Supplies  </title>
  <script>var tracker = "noise";</script>
  <style>.hidden { display: none; }</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <h1 class="company-name">Acme Corp</h1>
  <div class="about">
    Acme   Corp supplies   industrial plumbing

    fittings to	contractors.


    Founded in 1987.
  </div>
  <span class="phone">555-0100</span>
  <footer>© Acme Corp</footer>
  <noscript>enable javascript</noscript>
</body>
</html>`

func newFixed() *Extractor {
	e := New()
	e.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExtract_Defaults(t *testing.T) {
	rec, err := newFixed().Extract(samplePage, "https://acme.com", model.ExtractionSpec{})
	require.NoError(t, err)

	assert.Equal(t, "https://acme.com", rec.URL)
	assert.Equal(t, "Acme Corp — Plumbing Supplies", rec.Title)
	assert.Contains(t, rec.Body, "Acme Corp supplies industrial plumbing")
	assert.Contains(t, rec.Body, "Founded in 1987.")
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), rec.ExtractedAt)
}

func TestExtract_StripsNonContentMarkup(t *testing.T) {
	rec, err := newFixed().Extract(samplePage, "https://acme.com", model.ExtractionSpec{})
	require.NoError(t, err)

	assert.NotContains(t, rec.Body, "tracker")
	assert.NotContains(t, rec.Body, "display: none")
	assert.NotContains(t, rec.Body, "Home | About")
	assert.NotContains(t, rec.Body, "© Acme Corp")
	assert.NotContains(t, rec.Body, "enable javascript")
}

func TestExtract_FieldsInDeclarationOrder(t *testing.T) {
	spec := model.ExtractionSpec{
		Body: ".about",
		Fields: []model.FieldSpec{
			{Name: "phone", Selector: ".phone"},
			{Name: "name", Selector: ".company-name", Required: true},
			{Name: "fax", Selector: ".fax"},
		},
	}

	rec, err := newFixed().Extract(samplePage, "https://acme.com", spec)
	require.NoError(t, err)

	require.Len(t, rec.Fields, 3)
	assert.Equal(t, model.Field{Name: "phone", Value: "555-0100"}, rec.Fields[0])
	assert.Equal(t, model.Field{Name: "name", Value: "Acme Corp"}, rec.Fields[1])
	assert.Equal(t, model.Field{Name: "fax", Value: ""}, rec.Fields[2])
	assert.Equal(t, "555-0100", rec.FieldValue("phone"))
	assert.Empty(t, rec.FieldValue("missing"))
}

func TestExtract_MissingRequiredFieldFails(t *testing.T) {
	spec := model.ExtractionSpec{
		Fields: []model.FieldSpec{
			{Name: "vat", Selector: ".vat-number", Required: true},
		},
	}

	_, err := newFixed().Extract(samplePage, "https://acme.com", spec)
	require.Error(t, err)
	assert.Equal(t, model.FailureExtractionEmpty, model.KindOf(err))
}

func TestExtract_EmptyBodyFails(t *testing.T) {
	_, err := newFixed().Extract("<html><body><script>only();</script></body></html>",
		"https://acme.com", model.ExtractionSpec{})
	require.Error(t, err)
	assert.Equal(t, model.FailureExtractionEmpty, model.KindOf(err))
}

func TestExtract_Idempotent(t *testing.T) {
	spec := model.ExtractionSpec{
		Fields: []model.FieldSpec{{Name: "name", Selector: ".company-name"}},
	}
	e := newFixed()

	first, err := e.Extract(samplePage, "https://acme.com", spec)
	require.NoError(t, err)
	second, err := e.Extract(samplePage, "https://acme.com", spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses runs of spaces and tabs", "a  \t b", "a b"},
		{"trims line edges", "  a  \n  b  ", "a\nb"},
		{"caps blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"already normalized", "a\n\nb", "a\n\nb"},
		{"whitespace only", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "Normalize should be idempotent")
		})
	}
}
