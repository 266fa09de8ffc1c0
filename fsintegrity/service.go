// Package fsintegrity implements spec.PromptIntegrity on the local
// filesystem: a TOML manifest declares which prompt files are tracked and
// a deterministic JSON lock pins their content hashes.
package fsintegrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go/internal/pathutil"
	"github.com/flexigpt/lime-go/spec"
)

var _ spec.PromptIntegrity = (*Service)(nil)

// Service verifies prompt files against a manifest and lock policy.
// It is safe for concurrent use.
type Service struct {
	mu     sync.Mutex
	logger *zap.Logger

	manifestPath string
	lockPath     string

	manifest    *spec.PromptManifest
	manifestRaw []byte
	lock        *spec.PromptLock
	trustedRoot string

	// Canonical path -> verified hash, scoped to the loaded policy.
	verified map[string]string
}

type Option func(*Service) error

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// WithManifestPath sets the manifest used before LoadPolicy is called.
func WithManifestPath(p string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(p) == "" {
			return errors.Wrap(spec.ErrInvalidArgument, "empty manifest path")
		}
		s.manifestPath = p
		return nil
	}
}

// WithLockPath sets the lock used before LoadPolicy is called.
func WithLockPath(p string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(p) == "" {
			return errors.Wrap(spec.ErrInvalidArgument, "empty lock path")
		}
		s.lockPath = p
		return nil
	}
}

func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger:       zap.NewNop(),
		manifestPath: spec.PromptManifestFileName,
		lockPath:     spec.PromptLockFileName,
		verified:     map[string]string{},
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	var err error
	if s.manifestPath, err = pathutil.Canonical(s.manifestPath); err != nil {
		return nil, errors.Wrap(err, "manifest path")
	}
	if s.lockPath, err = pathutil.Canonical(s.lockPath); err != nil {
		return nil, errors.Wrap(err, "lock path")
	}
	return s, nil
}

func (s *Service) ManifestPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifestPath
}

func (s *Service) LockPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockPath
}

// TrustedRoot returns the canonical prompt root, or "" before a policy is loaded.
func (s *Service) TrustedRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trustedRoot
}

// LoadPolicy reads and cross-validates the manifest and lock. The verified
// hash cache is reset.
func (s *Service) LoadPolicy(ctx context.Context, manifestPath, lockPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mp, err := pathutil.Canonical(manifestPath)
	if err != nil {
		return errors.Wrap(errors.Mark(err, spec.ErrInvalidArgument), "manifest path")
	}
	lp, err := pathutil.Canonical(lockPath)
	if err != nil {
		return errors.Wrap(errors.Mark(err, spec.ErrInvalidArgument), "lock path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.manifestPath, s.lockPath = mp, lp
	s.manifest, s.lock, s.trustedRoot = nil, nil, ""
	clear(s.verified)

	if err := s.loadManifestLocked(); err != nil {
		return err
	}
	if err := s.loadLockLocked(); err != nil {
		return err
	}
	s.logger.Debug("prompt policy loaded",
		zap.String("manifest", s.manifestPath),
		zap.String("lock", s.lockPath),
		zap.String("root", s.trustedRoot),
		zap.Int("files", len(s.lock.Files)))
	return nil
}

// VerifyTrustedPath fails unless path resolves, symlinks followed, inside
// the trusted prompt root. The file need not exist.
func (s *Service) VerifyTrustedPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	_, err := s.trustedCandidateLocked(path)
	return err
}

// VerifyBytes checks content against the lock entry for path. Files with
// untracked extensions pass once their path is trusted.
func (s *Service) VerifyBytes(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	return s.verifyBytesLocked(path, content)
}

// ScanAndLock re-reads the manifest, hashes every tracked file and writes
// the lock. Output is byte-identical across runs with unchanged inputs.
func (s *Service) ScanAndLock(ctx context.Context) (spec.PromptLock, error) {
	if err := ctx.Err(); err != nil {
		return spec.PromptLock{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadManifestLocked(); err != nil {
		return spec.PromptLock{}, err
	}
	tracked, err := s.scanTrackedLocked(ctx)
	if err != nil {
		return spec.PromptLock{}, err
	}

	files := make(map[string]string, len(tracked))
	for rel, abs := range tracked {
		if err := ctx.Err(); err != nil {
			return spec.PromptLock{}, err
		}
		b, err := os.ReadFile(abs)
		if err != nil {
			return spec.PromptLock{}, errors.Wrapf(err, "read tracked prompt %q", rel)
		}
		files[rel] = HashBytes(b)
	}

	lock := spec.PromptLock{
		Version:        spec.PromptLockVersion,
		Algorithm:      spec.PromptHashAlgorithm,
		ManifestSHA256: HashBytes(s.manifestRaw),
		Root:           s.manifest.Root,
		Files:          files,
	}
	if err := writeLock(s.lockPath, lock); err != nil {
		return spec.PromptLock{}, err
	}

	s.lock = &lock
	clear(s.verified)
	s.logger.Info("prompt lock written",
		zap.String("lock", s.lockPath),
		zap.Int("files", len(files)))
	return lock, nil
}

// CheckAgainstLock fails when tracked files are missing from the lock,
// when the lock lists files no longer tracked, or when any tracked file's
// bytes drifted.
func (s *Service) CheckAgainstLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	tracked, err := s.scanTrackedLocked(ctx)
	if err != nil {
		return err
	}

	lockName := filepath.Base(s.lockPath)
	var missing, stale []string
	for rel := range tracked {
		if _, ok := s.lock.Files[rel]; !ok {
			missing = append(missing, rel)
		}
	}
	for rel := range s.lock.Files {
		if _, ok := tracked[rel]; !ok {
			stale = append(stale, rel)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		err := errors.Newf("Lock file '%s' is missing tracked prompts: %s.", lockName, strings.Join(missing, ", "))
		return spec.IntegrityError(errors.WithHint(err, "Run `lime prompts lock` to refresh the lock."), spec.ErrMissingLockEntry)
	}
	if len(stale) > 0 {
		slices.Sort(stale)
		err := errors.Newf("Lock file '%s' has stale entries: %s.", lockName, strings.Join(stale, ", "))
		return spec.IntegrityError(errors.WithHint(err, "Run `lime prompts lock` to refresh the lock."), spec.ErrStaleLockEntry)
	}

	rels := make([]string, 0, len(tracked))
	for rel := range tracked {
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := os.ReadFile(tracked[rel])
		if err != nil {
			return errors.Wrapf(err, "read tracked prompt %q", rel)
		}
		if err := s.verifyBytesLocked(tracked[rel], b); err != nil {
			return err
		}
	}
	return nil
}

// HashBytes returns "sha256:<lowercase hex>" of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return spec.PromptHashPrefix + hex.EncodeToString(sum[:])
}

func (s *Service) ensureLoadedLocked() error {
	if s.manifest == nil || s.trustedRoot == "" {
		if err := s.loadManifestLocked(); err != nil {
			return err
		}
	} else if err := s.ensureTrustedRootLocked(); err != nil {
		return err
	}
	if s.lock == nil {
		return s.loadLockLocked()
	}
	return nil
}

func (s *Service) trustedCandidateLocked(path string) (string, error) {
	candidate, err := pathutil.Canonical(path)
	if err != nil {
		return "", errors.Wrap(errors.Mark(err, spec.ErrInvalidArgument), "include path")
	}
	if !pathutil.WithinRoot(s.trustedRoot, candidate) {
		err := errors.Newf("Include path '%s' is outside trusted prompt root '%s'.", candidate, s.trustedRoot)
		return "", spec.IntegrityError(err, spec.ErrUnverifiedPath)
	}
	return candidate, nil
}

func (s *Service) verifyBytesLocked(path string, content []byte) error {
	candidate, err := s.trustedCandidateLocked(path)
	if err != nil {
		return err
	}
	if !slices.Contains(spec.TrackedPromptExtensions, filepath.Ext(candidate)) {
		return nil
	}

	rel, err := pathutil.RelPOSIX(s.trustedRoot, candidate)
	if err != nil {
		return spec.IntegrityError(err, spec.ErrUnverifiedPath)
	}
	expected, ok := s.lock.Files[rel]
	if !ok {
		err := errors.Newf("Prompt '%s' is missing from '%s'.", rel, filepath.Base(s.lockPath))
		return spec.IntegrityError(errors.WithHint(err, "Run `lime prompts lock` to track it."), spec.ErrMissingLockEntry)
	}

	actual := HashBytes(content)
	if s.verified[candidate] == actual {
		return nil
	}
	if expected != actual {
		err := errors.Newf("Prompt hash mismatch for '%s'. Expected %s, got %s.", rel, expected, actual)
		return spec.IntegrityError(err, spec.ErrHashMismatch)
	}
	s.verified[candidate] = actual
	return nil
}
