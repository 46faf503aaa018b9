package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SetupFlowLibrary writes files (name -> content) into a temporary directory
// and opens it as a read-only, strict Loam repository.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupFlowLibrary(t *testing.T, files map[string]string) (string, core.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	for name, content := range files {
		path := filepath.Join(absPath, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to seed %s", name)
	}

	repo, err := loam.Init(absPath, loam.WithStrict(true), loam.WithReadOnly(true))
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// WelcomeFlowJSON is a two-node flow document used across adapter tests.
const WelcomeFlowJSON = `{
  "id": "welcome",
  "title": "Welcome",
  "nodes": [
    {"id": "greet", "type": "textNode", "position": {"x": 0, "y": 0}, "data": {"label": "Hi there!"}},
    {"id": "menu", "type": "buttonNode", "position": {"x": 0, "y": 120},
     "data": {"label": "Choose an option:", "buttons": [
       {"id": "1", "text": "Yes", "value": "yes"},
       {"id": "2", "text": "No", "value": "no"}
     ]}}
  ],
  "edges": [{"id": "greet-menu", "source": "greet", "target": "menu"}]
}`
