// Package storage wraps the key-addressed blob store behind a small
// capability interface so the service layer never talks to S3 directly
// and tests can swap in the in-memory implementation.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrForeignKey is returned when an operation scoped to an owner is
// attempted on a key outside that owner's namespace.
var ErrForeignKey = errors.New("key does not belong to this owner's namespace")

type Store interface {
	// Put writes an object and applies the requested visibility in the
	// same call (ACL plus the public=true tag when public).
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, public bool) error

	// SignedURL returns a time-limited URL for a private object. The key
	// must be inside ownerID's namespace.
	SignedURL(ctx context.Context, ownerID, key string, ttl time.Duration) (string, error)

	// PublicURL returns a direct non-expiring URL if the object carries
	// the public tag. ok is false when the object is not public or the
	// tag lookup failed.
	PublicURL(ctx context.Context, key string) (url string, ok bool)

	// SetVisibility flips the ACL and the public tag together.
	SetVisibility(ctx context.Context, ownerID, key string, public bool) error

	Delete(ctx context.Context, ownerID, key string) error
}

// ObjectKey derives the storage key for a file. Keys are namespaced per
// user so two users uploading "report.pdf" never collide, and the
// prefix doubles as the access-isolation check in owned.
func ObjectKey(ownerID, name string) string {
	return ownerPrefix(ownerID) + name
}

func ownerPrefix(ownerID string) string {
	return "user-" + ownerID + "/"
}

func owned(ownerID, key string) bool {
	return strings.HasPrefix(key, ownerPrefix(ownerID))
}
