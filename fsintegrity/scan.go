package fsintegrity

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/flexigpt/lime-go/internal/pathutil"
	"github.com/flexigpt/lime-go/spec"
)

// scanTrackedLocked returns root-relative POSIX path -> canonical path for
// every regular file matched by an include pattern, not excluded, and with
// a tracked extension. A match resolving outside the trusted root fails,
// including dangling symlinks.
func (s *Service) scanTrackedLocked(ctx context.Context) (map[string]string, error) {
	tracked := map[string]string{}
	base := escapeMeta(s.trustedRoot)

	for _, pattern := range s.manifest.Include {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(base, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, spec.IntegrityError(errors.Wrapf(err, "manifest pattern '%s'", pattern), nil)
		}
		slices.Sort(matches)

		for _, m := range matches {
			resolved, err := pathutil.Canonical(m)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve %q", m)
			}
			if !pathutil.WithinRoot(s.trustedRoot, resolved) {
				err := errors.Newf("Manifest pattern '%s' resolved outside trusted prompt root '%s': '%s'.",
					pattern, s.trustedRoot, resolved)
				return nil, spec.IntegrityError(err, spec.ErrUnverifiedPath)
			}
			st, err := os.Stat(resolved)
			if err != nil || !st.Mode().IsRegular() {
				continue
			}
			if !slices.Contains(spec.TrackedPromptExtensions, filepath.Ext(resolved)) {
				continue
			}
			rel, err := pathutil.RelPOSIX(s.trustedRoot, resolved)
			if err != nil {
				return nil, spec.IntegrityError(err, spec.ErrUnverifiedPath)
			}
			if matchesAny(rel, s.manifest.Exclude) {
				continue
			}
			tracked[rel] = resolved
		}
	}
	return tracked, nil
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if matchPattern(rel, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a relative pattern against the trailing segments of
// rel, so "drafts/*.mg" also excludes "a/drafts/x.mg". A leading "**/" is
// retried without the prefix.
func matchPattern(rel, pattern string) bool {
	if matchSuffix(rel, pattern) {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		return matchSuffix(rel, rest)
	}
	return false
}

func matchSuffix(rel, pattern string) bool {
	if strings.HasPrefix(pattern, "/") {
		ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), rel)
		return ok
	}
	parts := strings.Split(rel, "/")
	for i := range parts {
		if ok, _ := doublestar.Match(pattern, strings.Join(parts[i:], "/")); ok {
			return true
		}
	}
	return false
}

// escapeMeta quotes glob metacharacters in a literal directory path.
func escapeMeta(p string) string {
	if pathutil.IsWindows() {
		return p
	}
	var b strings.Builder
	for _, r := range p {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
