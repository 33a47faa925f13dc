package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTargetsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeTargetsFile(t, `
targets:
  - url: https://acme.com
    spec:
      title: h1
      body: .about
      wait: .about
      fields:
        - name: phone
          selector: .phone
          required: true
    prompt_template: "Summarize {title}: {body}"
  - url: https://other.example
`)

	targets, err := loadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	first := targets[0]
	assert.Equal(t, "https://acme.com", first.URL)
	require.NotNil(t, first.Spec)
	assert.Equal(t, "h1", first.Spec.Title)
	assert.Equal(t, ".about", first.Spec.Wait)
	require.Len(t, first.Spec.Fields, 1)
	assert.Equal(t, "phone", first.Spec.Fields[0].Name)
	assert.True(t, first.Spec.Fields[0].Required)
	assert.Equal(t, "Summarize {title}: {body}", first.PromptTemplate)

	assert.Nil(t, targets[1].Spec)
}

func TestLoadTargets_EmptyFile(t *testing.T) {
	path := writeTargetsFile(t, "targets: []\n")
	_, err := loadTargets(path)
	assert.Error(t, err)
}

func TestLoadTargets_MissingURL(t *testing.T) {
	path := writeTargetsFile(t, "targets:\n  - spec:\n      title: h1\n")
	_, err := loadTargets(path)
	assert.Error(t, err)
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := loadTargets(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
