package core

import (
	"context"
	"time"
)

// Repository is the persistence contract shared by all store drivers.
//
// Uniqueness rules every driver must enforce, surfacing ErrConflict:
//   - users.email
//   - clients.name
//   - tokens (user_id, client_id)
//   - tokens.access and tokens.refresh
//
// RenewToken regenerates the access/refresh strings and resets Created for
// the same token id. The update is conditioned on expectedCreated (the
// Created value the caller observed); a concurrent renewal that won the race
// leaves no matching row and the driver reports ErrConflict so the caller
// can re-read and retry.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)

	FindClientByID(ctx context.Context, id string) (*Client, error)
	FindClientByName(ctx context.Context, name string) (*Client, error)
	CreateClient(ctx context.Context, c *Client) (*Client, error)

	FindTokenByID(ctx context.Context, id string) (*Token, error)
	FindTokenByUserClient(ctx context.Context, userID, clientID string) (*Token, error)
	FindTokenByRefresh(ctx context.Context, refresh string) (*Token, error)
	FindTokenByAccess(ctx context.Context, access string) (*Token, error)
	CreateToken(ctx context.Context, t *Token) (*Token, error)
	RenewToken(ctx context.Context, id string, expectedCreated time.Time, access, refresh string, created time.Time) error
	DeleteToken(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}
