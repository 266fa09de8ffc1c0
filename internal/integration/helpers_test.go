package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flexigpt/lime-go"
	"github.com/flexigpt/lime-go/fsintegrity"
	"github.com/flexigpt/lime-go/spec"
)

// promptProject is a temp directory holding prompts.toml, prompts/ and
// whatever entry files a test writes next to them.
type promptProject struct {
	dir string
	svc *fsintegrity.Service
}

func newPromptProject(t *testing.T, files map[string]string) *promptProject {
	t.Helper()

	p := &promptProject{dir: t.TempDir()}
	p.write(t, spec.PromptManifestFileName, spec.DefaultPromptManifestContent)
	if err := os.MkdirAll(p.path(spec.DefaultPromptRoot), 0o755); err != nil {
		t.Fatalf("mkdir prompts: %v", err)
	}
	for rel, content := range files {
		p.write(t, rel, content)
	}

	svc, err := fsintegrity.New(
		fsintegrity.WithManifestPath(p.path(spec.PromptManifestFileName)),
		fsintegrity.WithLockPath(p.path(spec.PromptLockFileName)),
	)
	if err != nil {
		t.Fatalf("new integrity service: %v", err)
	}
	p.svc = svc
	return p
}

func (p *promptProject) path(rel string) string {
	return filepath.Join(p.dir, filepath.FromSlash(rel))
}

func (p *promptProject) write(t *testing.T, rel, content string) {
	t.Helper()
	full := p.path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// lock writes the lock and reloads the policy from it.
func (p *promptProject) lock(t *testing.T) spec.PromptLock {
	t.Helper()
	lk, err := p.svc.ScanAndLock(t.Context())
	if err != nil {
		t.Fatalf("scan and lock: %v", err)
	}
	if err := p.svc.LoadPolicy(t.Context(), p.svc.ManifestPath(), p.svc.LockPath()); err != nil {
		t.Fatalf("load policy: %v", err)
	}
	return lk
}

func (p *promptProject) runtime(t *testing.T, opts ...lime.Option) *lime.Runtime {
	t.Helper()
	rt, err := lime.New(append([]lime.Option{lime.WithPromptIntegrity(p.svc)}, opts...)...)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return rt
}
