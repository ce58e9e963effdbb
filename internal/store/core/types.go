package core

import (
	"time"

	"github.com/seralabs/tokend/internal/permission"
)

type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Has          permission.Set
	CreatedAt    time.Time
}

type Client struct {
	ID        string
	Name      string
	Secret    string
	Has       permission.Set
	CreatedAt time.Time
}

// Token is the canonical record for a (user, client) pair. Access and
// Refresh are opaque random strings resolved server-side; Accessible and
// Refreshable are the configured lifetimes counted from Created. On renewal
// the strings and Created are replaced in place, the ID never changes.
type Token struct {
	ID          string
	UserID      string
	ClientID    string
	Access      string
	Refresh     string
	Created     time.Time
	Accessible  time.Duration
	Refreshable time.Duration
	Has         permission.Set
}

// Accessibility returns the remaining access-token lifetime at now,
// clamped at zero. Derived on every call, never cached.
func (t *Token) Accessibility(now time.Time) time.Duration {
	return remaining(t.Created, t.Accessible, now)
}

// Refreshability returns the remaining refresh-token lifetime at now,
// clamped at zero. Once it hits zero the token can no longer be renewed.
func (t *Token) Refreshability(now time.Time) time.Duration {
	return remaining(t.Created, t.Refreshable, now)
}

func remaining(created time.Time, lifetime time.Duration, now time.Time) time.Duration {
	left := lifetime - now.Sub(created)
	if left < 0 {
		return 0
	}
	return left
}
