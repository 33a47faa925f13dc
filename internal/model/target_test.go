package model

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_HappyPath(t *testing.T) {
	target := &Target{ID: "t1", URL: "https://acme.com", Status: StatusQueued}

	for _, next := range []TargetStatus{
		StatusExtracting,
		StatusExtracted,
		StatusGenerating,
		StatusGenerated,
		StatusExported,
	} {
		require.NoError(t, target.Advance(next))
		assert.Equal(t, next, target.Status)
	}
	assert.False(t, target.FinishedAt.IsZero())
}

func TestAdvance_NoStageSkipping(t *testing.T) {
	cases := []struct {
		from TargetStatus
		to   TargetStatus
	}{
		{StatusQueued, StatusExtracted},
		{StatusQueued, StatusGenerating},
		{StatusExtracting, StatusGenerating},
		{StatusExtracted, StatusGenerated},
		{StatusGenerating, StatusExported},
		{StatusExtracted, StatusExtracting}, // no regression
		{StatusGenerated, StatusQueued},
	}

	for _, tc := range cases {
		target := &Target{ID: "t1", Status: tc.from}
		err := target.Advance(tc.to)
		assert.Error(t, err, "expected %s -> %s to be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, target.Status)
	}
}

func TestAdvance_TerminalIsImmutable(t *testing.T) {
	exported := &Target{ID: "t1", Status: StatusExported}
	assert.Error(t, exported.Advance(StatusFailed))
	assert.Equal(t, StatusExported, exported.Status)

	failed := &Target{ID: "t2", Status: StatusFailed}
	assert.Error(t, failed.Advance(StatusExtracting))
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestFail_FromAnyNonTerminalState(t *testing.T) {
	for _, from := range []TargetStatus{
		StatusQueued, StatusExtracting, StatusExtracted, StatusGenerating, StatusGenerated,
	} {
		target := &Target{ID: "t1", Status: from}
		target.Fail(FailureExtractionEmpty, errors.New("no content"))

		assert.Equal(t, StatusFailed, target.Status)
		assert.Equal(t, FailureExtractionEmpty, target.FailureKind)
		assert.Equal(t, "no content", target.LastErr)
		assert.False(t, target.FinishedAt.IsZero())
	}
}

func TestFail_DoesNotOverwriteTerminal(t *testing.T) {
	target := &Target{ID: "t1", Status: StatusExported}
	target.Fail(FailureCanceled, errors.New("late cancel"))

	assert.Equal(t, StatusExported, target.Status)
	assert.Equal(t, FailureNone, target.FailureKind)
}

func TestExcerpt(t *testing.T) {
	target := &Target{}
	assert.Empty(t, target.Excerpt(10))

	target.Generation = &GenerationResult{Text: "short"}
	assert.Equal(t, "short", target.Excerpt(10))

	target.Generation = &GenerationResult{Text: "a very long generated report"}
	assert.Equal(t, "a very lon…", target.Excerpt(10))
}

func TestExcerpt_NeverSplitsRunes(t *testing.T) {
	// "é" is 2 bytes; a cut at byte 4 would land mid-rune.
	target := &Target{Generation: &GenerationResult{Text: "caféteria"}}

	got := target.Excerpt(4)
	assert.True(t, utf8.ValidString(got), "excerpt %q is not valid UTF-8", got)
	assert.Equal(t, "caf…", got)

	got = target.Excerpt(5)
	assert.True(t, utf8.ValidString(got), "excerpt %q is not valid UTF-8", got)
	assert.Equal(t, "café…", got)
}
