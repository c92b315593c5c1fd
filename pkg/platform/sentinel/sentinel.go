package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Registries, channels and platform
// adapters return these (optionally wrapped) so services can translate them
// into domain errors.
//
// - ErrNotFound: no entry for the key (request purged or never registered)
// - ErrConflict: an entry already occupies the slot
// - ErrClosed: the component was shut down
// - ErrUnavailable: backend temporarily unreachable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrClosed      = errors.New("closed")
	ErrUnavailable = errors.New("unavailable")
)
