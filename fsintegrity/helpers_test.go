package fsintegrity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexigpt/lime-go/spec"
)

type project struct {
	dir      string
	manifest string
	lock     string
	prompts  string
}

// newProject lays out a prompts project with tracked and untracked files.
func newProject(t *testing.T) project {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	p := project{
		dir:      dir,
		manifest: filepath.Join(dir, spec.PromptManifestFileName),
		lock:     filepath.Join(dir, spec.PromptLockFileName),
		prompts:  filepath.Join(dir, "prompts"),
	}
	writeFile(t, p.manifest, spec.DefaultPromptManifestContent)
	writeFile(t, filepath.Join(p.prompts, "setup.mg"), "<<hello>>")
	writeFile(t, filepath.Join(p.prompts, "setup.md"), "# hello")
	writeFile(t, filepath.Join(p.prompts, "ignored.txt"), "ignore")
	writeFile(t, filepath.Join(p.prompts, "entry.mgx"), "<<entry>>")
	writeFile(t, filepath.Join(p.prompts, "salt", "template.mg"), "<<nested>>")
	return p
}

func (p project) service(t *testing.T) *Service {
	t.Helper()
	s, err := New(WithManifestPath(p.manifest), WithLockPath(p.lock))
	require.NoError(t, err)
	return s
}

// loaded returns a fresh service with the project's policy loaded.
func (p project) loaded(t *testing.T) *Service {
	t.Helper()
	s := p.service(t)
	require.NoError(t, s.LoadPolicy(t.Context(), p.manifest, p.lock))
	return s
}

func (p project) editLock(t *testing.T, edit func(m map[string]any)) {
	t.Helper()
	raw, err := os.ReadFile(p.lock)
	require.NoError(t, err)
	m := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &m))
	edit(m)
	out, err := json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.lock, append(out, '\n'), 0o644))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
