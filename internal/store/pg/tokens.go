package pg

import (
	"context"
	"time"

	"github.com/seralabs/tokend/internal/store/core"
)

const tokenCols = `id, user_id, client_id, access, refresh, created, accessible_ms, refreshable_ms, has`

func (s *Store) FindTokenByID(ctx context.Context, id string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM tokens WHERE id = $1`
	return s.scanToken(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) FindTokenByUserClient(ctx context.Context, userID, clientID string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM tokens WHERE user_id = $1 AND client_id = $2`
	return s.scanToken(s.pool.QueryRow(ctx, q, userID, clientID))
}

func (s *Store) FindTokenByRefresh(ctx context.Context, refresh string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM tokens WHERE refresh = $1`
	return s.scanToken(s.pool.QueryRow(ctx, q, refresh))
}

func (s *Store) FindTokenByAccess(ctx context.Context, access string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM tokens WHERE access = $1`
	return s.scanToken(s.pool.QueryRow(ctx, q, access))
}

func (s *Store) CreateToken(ctx context.Context, t *core.Token) (*core.Token, error) {
	const q = `
		INSERT INTO tokens (id, user_id, client_id, access, refresh, created, accessible_ms, refreshable_ms, has)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + tokenCols
	has, err := marshalSet(t.Has)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, q,
		t.ID, t.UserID, t.ClientID, t.Access, t.Refresh, t.Created,
		t.Accessible.Milliseconds(), t.Refreshable.Milliseconds(), has)
	return s.scanToken(row)
}

// RenewToken swaps the opaque strings and resets created for the same row.
// The WHERE clause pins the created value the caller read; zero rows means
// a concurrent renewal got there first and the caller should re-read.
func (s *Store) RenewToken(ctx context.Context, id string, expectedCreated time.Time, access, refresh string, created time.Time) error {
	const q = `
		UPDATE tokens SET access = $3, refresh = $4, created = $5
		WHERE id = $1 AND created = $2`
	ct, err := s.pool.Exec(ctx, q, id, expectedCreated, access, refresh, created)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		if _, ferr := s.FindTokenByID(ctx, id); ferr != nil {
			return ferr
		}
		return core.ErrConflict
	}
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	const q = `DELETE FROM tokens WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) scanToken(row rowScanner) (*core.Token, error) {
	var t core.Token
	var has []byte
	var accessibleMs, refreshableMs int64
	if err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.Access, &t.Refresh, &t.Created, &accessibleMs, &refreshableMs, &has); err != nil {
		return nil, mapErr(err)
	}
	t.Accessible = time.Duration(accessibleMs) * time.Millisecond
	t.Refreshable = time.Duration(refreshableMs) * time.Millisecond
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	t.Has = set
	return &t, nil
}
