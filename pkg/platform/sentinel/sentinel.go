// Package sentinel holds the storage-level facts that dataset, run, audit
// and blob stores report. Services map them onto domain-errors codes.
package sentinel

import "errors"

var (
	// ErrNotFound: no dataset, run, audit entry or blob under that key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a dataset id or blob key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: a backing service (Postgres, Redis, MinIO) cannot be reached.
	ErrUnavailable = errors.New("unavailable")
)
