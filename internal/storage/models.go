package storage

import "time"

type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	FirstName      *string
	LastName       *string
	ProfilePicture *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KeyKind selects one of the three credential tables.
type KeyKind string

const (
	KindAI         KeyKind = "ai"
	KindTrading    KeyKind = "trading"
	KindMarketData KeyKind = "market-data"
)

// APIKey is the shared row shape of all three key tables. Discriminator holds
// the provider for AI and market-data keys and the access type for trading
// keys. A key is visible only while DeletedAt is nil.
type APIKey struct {
	ID            int64
	UserID        int64
	Title         string
	Discriminator string
	APIKey        string
	IsActive      bool
	LastUsed      *time.Time
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserPatch carries the optional profile fields; nil means leave unchanged.
type UserPatch struct {
	Email          *string
	PasswordHash   *string
	FirstName      *string
	LastName       *string
	ProfilePicture *string
}

// KeyPatch carries the optional key fields; nil means leave unchanged.
type KeyPatch struct {
	Title         *string
	Discriminator *string
	APIKey        *string
	IsActive      *bool
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// KeyLog is an append-only audit record of a credential mutation.
type KeyLog struct {
	UserID    int64
	KeyType   KeyKind
	Action    string
	IPAddress string
	UserAgent string
}
