package secrets

import "context"

// Store is a versioned secret store with per-container read grants.
//
// Implementations return ErrNotFound for missing containers or versions and
// ErrAccessDenied when the backend itself refuses an operation.
type Store interface {
	// CreateContainer creates the container with owner as its administrator.
	// It is a no-op when the container already exists.
	CreateContainer(ctx context.Context, container, owner string) error
	// Owner returns the administrator recorded at creation.
	Owner(ctx context.Context, container string) (string, error)
	// AddVersion stores value as a new version and returns its number.
	AddVersion(ctx context.Context, container string, value []byte) (Version, error)
	// LatestVersion returns the newest version number without reading its value.
	LatestVersion(ctx context.Context, container string) (Version, error)
	// ReadLatest returns the newest value and its version.
	ReadLatest(ctx context.Context, container string) ([]byte, Version, error)
	// GrantRead adds identity to the container's readers. Idempotent.
	GrantRead(ctx context.Context, container, identity string) error
	// CanRead reports whether identity is a reader of the container.
	CanRead(ctx context.Context, container, identity string) (bool, error)
	// DeleteContainer removes the container with all versions and grants.
	DeleteContainer(ctx context.Context, container string) error
}
