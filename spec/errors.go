package spec

import "github.com/cockroachdb/errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnsupportedSyntax marks grammar faults: bad include extensions,
	// malformed effect operands and unparsable source lines.
	ErrUnsupportedSyntax = errors.New("unsupported syntax")

	// ErrMissingResource marks absent include files, manifests and lock files.
	ErrMissingResource = errors.New("missing resource")

	// ErrIntegrity is the parent kind of every prompt integrity violation.
	ErrIntegrity = errors.New("prompt integrity violation")

	ErrHashMismatch     = errors.New("prompt hash mismatch")
	ErrMissingLockEntry = errors.New("missing lock entry")
	ErrStaleLockEntry   = errors.New("stale lock entry")
	ErrUnverifiedPath   = errors.New("path outside trusted prompt root")

	// ErrEncoding marks include content that is not valid UTF-8.
	ErrEncoding = errors.New("invalid prompt encoding")

	// ErrMaxDepth is returned when nested includes exceed the configured limit.
	ErrMaxDepth = errors.New("maximum include depth exceeded")
)

// IntegrityError marks err as an integrity violation of the given kind.
// Both errors.Is(err, kind) and errors.Is(err, ErrIntegrity) hold for the result.
func IntegrityError(err, kind error) error {
	if kind != nil && kind != ErrIntegrity {
		err = errors.Mark(err, kind)
	}
	return errors.Mark(err, ErrIntegrity)
}
