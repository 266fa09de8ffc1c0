package spec

import "context"

const (
	PromptManifestFileName = "prompts.toml"
	PromptLockFileName     = "prompts.lock.json"
	PromptManifestVersion  = 1
	PromptLockVersion      = 1
	PromptHashAlgorithm    = "sha256"
	PromptHashPrefix       = PromptHashAlgorithm + ":"
	DefaultPromptRoot      = "prompts"

	DefaultPromptManifestContent = "version = 1\n" +
		"root = \"prompts\"\n" +
		"include = [\"**/*.mg\", \"**/*.mgx\"]\n" +
		"exclude = []\n"
)

var (
	// TrackedPromptExtensions are hashed into the lock. ".mgx" is a top-level entry format.
	TrackedPromptExtensions = []string{".mg", ".mgx"}

	// IncludeExtensions are accepted by include statements. ".md" is includable content.
	IncludeExtensions = []string{".mg", ".md"}

	DefaultPromptInclude = []string{"**/*.mg", "**/*.mgx"}
)

// PromptManifest is the parsed prompts.toml policy.
type PromptManifest struct {
	Version int      `toml:"version"`
	Root    string   `toml:"root"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// PromptLock is the parsed or generated prompts.lock.json snapshot.
// Files maps root-relative POSIX paths to "sha256:<hex>" digests.
type PromptLock struct {
	Version        int               `json:"version"`
	Algorithm      string            `json:"algorithm"`
	ManifestSHA256 string            `json:"manifest_sha256"`
	Root           string            `json:"root"`
	Files          map[string]string `json:"files"`
}

// PromptIntegrity verifies prompt files against a manifest and lock policy.
type PromptIntegrity interface {
	LoadPolicy(ctx context.Context, manifestPath, lockPath string) error
	VerifyTrustedPath(ctx context.Context, path string) error
	VerifyBytes(ctx context.Context, path string, content []byte) error
	ScanAndLock(ctx context.Context) (PromptLock, error)
	CheckAgainstLock(ctx context.Context) error
}
