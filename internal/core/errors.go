package core

import "errors"

// Sentinel errors wrapped by core services. The API layer maps them onto
// HTTP statuses; everything else surfaces as an internal error.
var (
	// ErrValidation marks requests rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks entities that are absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations rejected by current state: duplicate
	// invoice period, double payment, starting an already-running server.
	ErrConflict = errors.New("conflict")
	// ErrRuntimeFailure marks an individual container-runtime call failure
	// during a lifecycle operation. There is no automatic retry; the caller
	// must re-issue the intent.
	ErrRuntimeFailure = errors.New("runtime operation failed")
)
