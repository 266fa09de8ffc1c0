package fsintegrity

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/flexigpt/lime-go/internal/pathutil"
	"github.com/flexigpt/lime-go/spec"
)

const relockHint = "Re-run `lime prompts lock` to regenerate the lock."

func integrityf(format string, args ...any) error {
	return spec.IntegrityError(errors.Newf(format, args...), nil)
}

// loadManifestLocked reads the manifest and derives the trusted root from it.
func (s *Service) loadManifestLocked() error {
	name := filepath.Base(s.manifestPath)
	raw, err := os.ReadFile(s.manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		err := errors.Newf("Prompt manifest '%s' was not found.", name)
		err = errors.WithHint(err, "Run `lime prompts init` to create one.")
		return spec.IntegrityError(errors.Mark(err, spec.ErrMissingResource), nil)
	}
	if err != nil {
		return errors.Wrapf(err, "read manifest %q", name)
	}

	m, err := parseManifest(name, raw)
	if err != nil {
		return err
	}

	s.manifest = &m
	s.manifestRaw = raw
	s.trustedRoot = ""
	root, err := pathutil.Canonical(filepath.Join(filepath.Dir(s.manifestPath), filepath.FromSlash(m.Root)))
	if err != nil {
		return integrityf("Prompt root '%s' does not exist or is not a directory.", m.Root)
	}
	s.trustedRoot = root
	return s.ensureTrustedRootLocked()
}

func (s *Service) ensureTrustedRootLocked() error {
	if s.trustedRoot == "" {
		return integrityf("Prompt root '%s' does not exist or is not a directory.", s.trustedRoot)
	}
	st, err := os.Stat(s.trustedRoot)
	if err != nil || !st.IsDir() {
		return integrityf("Prompt root '%s' does not exist or is not a directory.", s.trustedRoot)
	}
	return nil
}

func parseManifest(name string, raw []byte) (spec.PromptManifest, error) {
	data := map[string]any{}
	if _, err := toml.Decode(string(raw), &data); err != nil {
		return spec.PromptManifest{}, integrityf("Failed to parse manifest '%s': %v", name, err)
	}

	version, ok := data["version"].(int64)
	if !ok || version != spec.PromptManifestVersion {
		return spec.PromptManifest{}, integrityf(
			"Unsupported manifest version '%v'. Expected %d.", data["version"], spec.PromptManifestVersion)
	}
	root, ok := data["root"].(string)
	if !ok || root == "" {
		return spec.PromptManifest{}, integrityf("Manifest field 'root' must be a non-empty string.")
	}
	include, ok := stringList(data["include"])
	if !ok {
		return spec.PromptManifest{}, integrityf("Manifest field 'include' must be a list of strings.")
	}
	exclude := []string{}
	if v, present := data["exclude"]; present {
		if exclude, ok = stringList(v); !ok {
			return spec.PromptManifest{}, integrityf("Manifest field 'exclude' must be a list of strings.")
		}
	}
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return spec.PromptManifest{}, integrityf("Manifest pattern '%s' is not a valid glob.", p)
		}
	}

	return spec.PromptManifest{
		Version: int(version),
		Root:    root,
		Include: include,
		Exclude: exclude,
	}, nil
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok || s == "" {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// loadLockLocked reads the lock and validates it against the loaded manifest.
func (s *Service) loadLockLocked() error {
	name := filepath.Base(s.lockPath)
	raw, err := os.ReadFile(s.lockPath)
	if errors.Is(err, fs.ErrNotExist) {
		err := errors.Newf("Prompt lock '%s' was not found.", name)
		err = errors.WithHint(err, "Run `lime prompts lock` to generate it.")
		return spec.IntegrityError(errors.Mark(err, spec.ErrMissingResource), spec.ErrMissingLockEntry)
	}
	if err != nil {
		return errors.Wrapf(err, "read lock %q", name)
	}

	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return integrityf("Failed to parse lock file '%s': %v", name, err)
	}

	filesRaw, ok := data["files"].(map[string]any)
	if !ok {
		return integrityf("Lock field 'files' must be a mapping of string hashes.")
	}
	files := make(map[string]string, len(filesRaw))
	for k, v := range filesRaw {
		h, ok := v.(string)
		if !ok {
			return integrityf("Lock field 'files' must be a mapping of string hashes.")
		}
		files[k] = h
	}

	if got := HashBytes(s.manifestRaw); data["manifest_sha256"] != got {
		err := errors.Newf("Manifest hash mismatch between '%s' and '%s'. Re-run prompt lock generation.",
			filepath.Base(s.manifestPath), name)
		return spec.IntegrityError(errors.WithHint(err, relockHint), nil)
	}
	if v, ok := data["version"].(float64); !ok || v != spec.PromptLockVersion {
		return integrityf("Unsupported lock version '%v'. Expected %d.", data["version"], spec.PromptLockVersion)
	}
	if data["algorithm"] != spec.PromptHashAlgorithm {
		return integrityf("Unsupported hash algorithm '%v'. Expected '%s'.", data["algorithm"], spec.PromptHashAlgorithm)
	}
	if data["root"] != s.manifest.Root {
		return integrityf("Lock root '%v' does not match manifest root '%s'.", data["root"], s.manifest.Root)
	}

	manifestHash, _ := data["manifest_sha256"].(string)
	s.lock = &spec.PromptLock{
		Version:        spec.PromptLockVersion,
		Algorithm:      spec.PromptHashAlgorithm,
		ManifestSHA256: manifestHash,
		Root:           s.manifest.Root,
		Files:          files,
	}
	return nil
}

// lockFile fixes the serialized key order; encoding/json sorts map keys.
type lockFile struct {
	Algorithm      string            `json:"algorithm"`
	Files          map[string]string `json:"files"`
	ManifestSHA256 string            `json:"manifest_sha256"`
	Root           string            `json:"root"`
	Version        int               `json:"version"`
}

// EncodeLock renders lock as indented, key-sorted JSON with a trailing newline.
func EncodeLock(lock spec.PromptLock) ([]byte, error) {
	files := lock.Files
	if files == nil {
		files = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lockFile{
		Algorithm:      lock.Algorithm,
		Files:          files,
		ManifestSHA256: lock.ManifestSHA256,
		Root:           lock.Root,
		Version:        lock.Version,
	}); err != nil {
		return nil, errors.Wrap(err, "encode lock")
	}
	return buf.Bytes(), nil
}

func writeLock(path string, lock spec.PromptLock) error {
	b, err := EncodeLock(lock)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create lock directory")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write lock %q", filepath.Base(path))
	}
	return nil
}
