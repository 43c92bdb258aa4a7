// Package storage persists the session fields behind a small key/value
// interface so the backing mechanism (memory, local file, Redis) can be
// swapped without touching session logic.
package storage

import (
	"context"
)

// Persisted session keys. Each is written and invalidated independently.
const (
	KeyToken        = "token"
	KeyUserData     = "userData"
	KeyUserRole     = "userRole"
	KeyAcademicYear = "academicYear"
)

// SessionKeys lists every key that belongs to an authenticated session.
var SessionKeys = []string{KeyToken, KeyUserData, KeyUserRole, KeyAcademicYear}

// Storage is the persistence adapter consumed by the gateway and the session
// manager. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key owned by this storage.
	Clear(ctx context.Context) error
}

// ClearSession removes all session keys, continuing past individual failures
// and returning the first error seen.
func ClearSession(ctx context.Context, s Storage) error {
	var first error
	for _, key := range SessionKeys {
		if err := s.Remove(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}
