package supervisor

import "github.com/pkg/errors"

// Error kinds from spec §7. Transient/per-event errors are absorbed
// with logging; only ErrPoisonedLock is fatal.
var (
	ErrNoChainsAvailable = errors.New("no chains available")
	ErrChainIDMismatch   = errors.New("batch chain id does not match source handle id")
	ErrPoisonedLock      = errors.New("poisoned configuration lock")
)
