package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Storage and back-end adapters return
// these (optionally wrapped) so services can translate them into domain errors
// or, on tracking paths, into the safe default.
//
//   - ErrNotFound: record does not exist in storage
//   - ErrCorrupt: record exists but cannot be decoded
//   - ErrUnavailable: storage or remote service temporarily unavailable
//   - ErrClosed: component was stopped and no longer accepts work
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrCorrupt     = errors.New("corrupt record")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
