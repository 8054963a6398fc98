// Package store persists Wi-Fi credentials in a local SQLite database.
// Passwords are stored clear text, including the "Not Available" and
// "Error" sentinels the probe reports for unreadable keys. Row iteration
// keeps insertion order, which is what makes credential auto-selection
// deterministic.
package store

import (
	"context"
	"errors"

	"netsentry/internal/core"
)

// ErrNotFound is returned when an operation targets an SSID that has no
// stored profile.
var ErrNotFound = errors.New("profile not found")

// ResolveAction is the decision for one conflicting import row.
type ResolveAction int

const (
	// ResolveSkip keeps the stored password. The zero value, so an
	// unresolved conflict never overwrites anything.
	ResolveSkip ResolveAction = iota
	// ResolveReplace overwrites the stored password with the incoming one.
	ResolveReplace
)

func (a ResolveAction) String() string {
	switch a {
	case ResolveSkip:
		return "skip"
	case ResolveReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Conflict reports an imported credential whose SSID already exists with
// a different password.
type Conflict struct {
	SSID     string
	Stored   string
	Incoming string
}

// Resolution resolves one Conflict. Password is the incoming value to
// write when Action is ResolveReplace.
type Resolution struct {
	SSID     string
	Password string
	Action   ResolveAction
}

// ImportReport summarizes one UpsertBatch.
type ImportReport struct {
	Added     int
	Skipped   int
	Conflicts []Conflict
}

// Store is the profile persistence boundary. The probe consumes it
// through the narrower CredentialSource view; frontends use the rest.
type Store interface {
	// Password looks up one SSID. A miss is reported through the bool,
	// not the error.
	Password(ctx context.Context, ssid string) (string, bool, error)
	// All returns every stored credential in insertion order.
	All(ctx context.Context) ([]core.WifiCredential, error)
	// UpsertBatch inserts unseen SSIDs, silently skips same-password
	// duplicates, and reports different-password duplicates as conflicts
	// for the caller to resolve.
	UpsertBatch(ctx context.Context, creds []core.WifiCredential) (*ImportReport, error)
	// Apply carries out conflict resolutions from an earlier UpsertBatch.
	Apply(ctx context.Context, resolutions []Resolution) error
	// Save writes one credential unconditionally (insert or overwrite).
	Save(ctx context.Context, cred core.WifiCredential) error
	// Delete removes one profile; ErrNotFound when it does not exist.
	Delete(ctx context.Context, ssid string) error
	Close() error
}
