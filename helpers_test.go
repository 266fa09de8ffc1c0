package lime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	require.NoError(t, err)
	return rt
}

func run(t *testing.T, rt *Runtime, source, base string) *execmodel.Model {
	t.Helper()
	m, err := rt.Run(t.Context(), source, base)
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

type recordingPlugin struct {
	token    string
	operands []string
}

func (p *recordingPlugin) IsMatch(token string) bool { return token == p.token }

func (p *recordingPlugin) Handle(_ context.Context, operand string, _ *execmodel.Model) error {
	p.operands = append(p.operands, operand)
	return nil
}

// fakeIntegrity trusts paths under root and rejects bytes listed in tampered.
type fakeIntegrity struct {
	root     string
	tampered map[string]bool
	verified []string
}

func (f *fakeIntegrity) LoadPolicy(context.Context, string, string) error { return nil }

func (f *fakeIntegrity) VerifyTrustedPath(_ context.Context, path string) error {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return spec.IntegrityError(
			errors.Newf("Path '%s' is outside trusted prompt root '%s'.", path, f.root),
			spec.ErrUnverifiedPath,
		)
	}
	return nil
}

func (f *fakeIntegrity) VerifyBytes(ctx context.Context, path string, _ []byte) error {
	if err := f.VerifyTrustedPath(ctx, path); err != nil {
		return err
	}
	if f.tampered[filepath.Base(path)] {
		return spec.IntegrityError(errors.Newf("Prompt hash mismatch for '%s'.", filepath.Base(path)), spec.ErrHashMismatch)
	}
	f.verified = append(f.verified, filepath.Base(path))
	return nil
}

func (f *fakeIntegrity) ScanAndLock(context.Context) (spec.PromptLock, error) {
	return spec.PromptLock{}, nil
}

func (f *fakeIntegrity) CheckAgainstLock(context.Context) error { return nil }
