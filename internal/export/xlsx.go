package export

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospector/internal/model"
)

// summaryColumns defines the ordered tabular output columns.
var summaryColumns = []string{
	"ID",
	"URL",
	"Status",
	"Failure",
	"Title",
	"Generated Excerpt",
	"Truncated",
	"Completed At",
}

// XLSXSink writes the run summary workbook: one row per target. The sink
// is append-only — a target already written is never written again, so
// re-exporting a run produces no duplicate rows.
type XLSXSink struct {
	path       string
	excerptLen int

	mu      sync.Mutex
	written map[string]bool
	file    *xlsx.File
	sheet   *xlsx.Sheet
}

// NewXLSXSink creates a sink writing to path.
func NewXLSXSink(path string, excerptLen int) (*XLSXSink, error) {
	if excerptLen <= 0 {
		excerptLen = 200
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Results")
	if err != nil {
		return nil, eris.Wrap(model.ErrExportIO, err.Error())
	}

	header := sheet.AddRow()
	for _, col := range summaryColumns {
		header.AddCell().SetString(col)
	}

	return &XLSXSink{
		path:       path,
		excerptLen: excerptLen,
		written:    make(map[string]bool),
		file:       file,
		sheet:      sheet,
	}, nil
}

// Export appends rows for targets not yet written and saves the workbook.
// A write failure surfaces ErrExportIO and changes no pipeline state.
func (s *XLSXSink) Export(run *model.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range run.Targets {
		if s.written[t.ID] {
			continue
		}
		s.addRow(t)
		s.written[t.ID] = true
	}

	if err := s.file.Save(s.path); err != nil {
		return eris.Wrap(model.ErrExportIO, err.Error())
	}
	return nil
}

func (s *XLSXSink) addRow(t *model.Target) {
	row := s.sheet.AddRow()
	row.AddCell().SetString(t.ID)
	row.AddCell().SetString(t.URL)
	row.AddCell().SetString(string(t.Status))
	row.AddCell().SetString(string(t.FailureKind))

	var title string
	if t.Record != nil {
		title = t.Record.Title
	}
	row.AddCell().SetString(title)
	row.AddCell().SetString(t.Excerpt(s.excerptLen))

	truncated := ""
	completed := ""
	if t.Generation != nil {
		if t.Generation.Truncated {
			truncated = "yes"
		}
		completed = t.Generation.CompletedAt.Format(time.RFC3339)
	}
	row.AddCell().SetString(truncated)
	row.AddCell().SetString(completed)
}

// Written reports whether a target's row is already in the workbook.
func (s *XLSXSink) Written(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written[targetID]
}
