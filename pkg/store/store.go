package store

import "context"

// Permission is the sharing mode attached to a catalog record by its owner.
//
// READ_ONLY lets other users open the record; READ_WRITE additionally lets
// them resize or delete it. The permission never restricts the owner.
type Permission string

const (
	// PermissionReadOnly allows non-owners to open the record only.
	PermissionReadOnly Permission = "RO"

	// PermissionReadWrite allows non-owners to open, update, and delete the record.
	PermissionReadWrite Permission = "RW"
)

// Valid reports whether p is one of the two recognized permissions.
func (p Permission) Valid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

// FileRecord is a catalog entry describing a file by name.
//
// The catalog tracks metadata only; file content never passes through the
// service. Filename is the unique key across the whole catalog (there are no
// per-user namespaces).
type FileRecord struct {
	// Filename is the unique catalog key
	Filename string `json:"filename"`

	// Size is the advertised file size in bytes
	Size int64 `json:"size"`

	// Owner is the username of the registered user who uploaded the record
	Owner string `json:"owner"`

	// Permission is the sharing mode granted to non-owners
	Permission Permission `json:"permission"`
}

// CatalogStore is the persistence contract for catalog records.
//
// Implementations must be safe for concurrent use. Business rules
// (ownership, permissions, notifications) are enforced above this interface;
// stores only answer create/find/list/delete/resize on the keyed records.
//
// Error contract:
//   - CreateRecord returns ErrAlreadyExists when the filename is taken
//   - FindRecord and DeleteRecord return ErrNotFound for absent filenames
//   - UpdateSize on an absent filename is a no-op (mirrors a keyed UPDATE
//     statement matching zero rows)
type CatalogStore interface {
	// CreateRecord inserts a new record keyed by record.Filename.
	CreateRecord(ctx context.Context, record FileRecord) error

	// FindRecord returns the record for the given filename.
	FindRecord(ctx context.Context, filename string) (*FileRecord, error)

	// ListRecords returns all records in the catalog. An empty catalog
	// yields an empty slice, not an error.
	ListRecords(ctx context.Context) ([]FileRecord, error)

	// DeleteRecord removes the record for the given filename.
	DeleteRecord(ctx context.Context, filename string) error

	// UpdateSize overwrites the size of the record for the given filename.
	UpdateSize(ctx context.Context, filename string, size int64) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// AccountStore is the persistence contract for user accounts.
//
// Passwords are stored and compared as plain text. This mirrors the account
// table this service fronts; hardening the credential format is tracked as a
// known weakness and is out of scope here.
type AccountStore interface {
	// CreateAccount inserts a new account. Returns ErrAlreadyExists when
	// the username is taken.
	CreateAccount(ctx context.Context, username, password string) error

	// GetPassword returns the stored password for the username.
	// Returns ErrNotFound for unknown usernames.
	GetPassword(ctx context.Context, username string) (string, error)

	// Exists reports whether an account with the username exists.
	Exists(ctx context.Context, username string) (bool, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
