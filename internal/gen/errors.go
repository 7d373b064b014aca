package gen

import "github.com/cockroachdb/errors"

// Sentinel errors for the translator core. The first group is fatal: they
// indicate malformed schema input or a broken internal contract, and abort
// the current file's translation. The second group signals "try a different
// strategy" to the caller and is always handled on a fallback path.
var (
	// ErrUnknownFieldKind is returned when a type descriptor carries a kind
	// the resolver does not understand. Never coerced to Any; an unsupported
	// schema construct must fail loudly.
	ErrUnknownFieldKind = errors.New("stubgen: unknown field kind")

	// ErrNotFound is returned by entity lookups for ids that were never
	// registered. Callers must attempt cross-module generation or import
	// before treating this as fatal.
	ErrNotFound = errors.New("stubgen: entity not registered")

	// ErrNoParentScope is returned when a scope push names a parent node
	// that never opened a scope (its declaration was skipped). Callers
	// degrade by registering at the file's root scope instead.
	ErrNoParentScope = errors.New("stubgen: no scope registered for parent node")

	// ErrAlreadyImported is returned when generation is requested for an
	// entity that the import resolver already handled; the local body must
	// not be emitted a second time.
	ErrAlreadyImported = errors.New("stubgen: entity imported from another module")
)

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoParentScopeErr returns true if err is or wraps ErrNoParentScope.
func IsNoParentScopeErr(err error) bool {
	return errors.Is(err, ErrNoParentScope)
}

// IsAlreadyImportedErr returns true if err is or wraps ErrAlreadyImported.
func IsAlreadyImportedErr(err error) bool {
	return errors.Is(err, ErrAlreadyImported)
}
