package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrs/adaptive-quiz/internal/generation"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIndexListPreview(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mock")
	dir := t.TempDir()
	doc := filepath.Join(t.TempDir(), "photosynthesis.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Chlorophyll absorbs light energy.\n\nThe Calvin cycle fixes carbon dioxide into sugars."), 0o644))

	out, err := run(t, "--index-dir", dir, "index", "--file", doc)
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.Len(t, hash, 64)

	out, err = run(t, "--index-dir", dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, hash)
	assert.Contains(t, out, "photosynthesis.txt")

	out, err = run(t, "--index-dir", dir, "preview", "--hash", hash, "--easy", "1", "--medium", "0", "--hard", "1")
	require.NoError(t, err)
	var res generation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Questions, 2)
}

func TestIndexRejectsConvertibleFormats(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "slides.pptx")
	require.NoError(t, os.WriteFile(doc, []byte("binary"), 0o644))

	_, err := run(t, "--index-dir", t.TempDir(), "index", "--file", doc)
	assert.ErrorContains(t, err, "convert")
}

func TestPreviewUnknownHash(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mock")
	_, err := run(t, "--index-dir", t.TempDir(), "preview", "--hash", strings.Repeat("a", 64))
	assert.Error(t, err)
}
