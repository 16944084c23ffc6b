package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		docPaths, topK, showPrompt, forceInit = nil, 0, false, false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDemoAnswersEiffel(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := run(t, "--config", cfgFile, "--log-level", "error", "demo", "--show-prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "Answer: A Torre Eiffel tem 324 metros de altura.")
	assert.Contains(t, out, "Question: Qual é a altura da Torre Eiffel?")
	assert.Contains(t, out, "--- prompt ---")
}

func TestAskWithDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A Torre Eiffel tem 324 metros de altura."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("O Monte Everest é a montanha mais alta do mundo."), 0o644))

	out, err := run(t, "--config", filepath.Join(dir, "none.yaml"), "--log-level", "error",
		"search", "-k", "1", "-d", filepath.Join(dir, "*.txt"), "Qual é a altura da Torre Eiffel?")
	require.NoError(t, err)
	assert.Contains(t, out, "[a.txt]")
	assert.NotContains(t, out, "Everest")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	assert.FileExists(t, path)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err)
	_, err = run(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}
