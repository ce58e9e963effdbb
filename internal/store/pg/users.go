package pg

import (
	"context"
	"encoding/json"

	"github.com/seralabs/tokend/internal/permission"
	"github.com/seralabs/tokend/internal/store/core"
)

const userCols = `id, email, first_name, last_name, password_hash, has, created_at`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, email))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	const q = `
		INSERT INTO users (id, email, first_name, last_name, password_hash, has, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userCols
	has, err := marshalSet(u.Has)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, q, u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, has, u.CreatedAt)
	return s.scanUser(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func (s *Store) scanUser(row rowScanner) (*core.User, error) {
	var u core.User
	var has []byte
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &has, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	u.Has = set
	return &u, nil
}

func marshalSet(s permission.Set) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func unmarshalSet(b []byte) (permission.Set, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s permission.Set
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, nil
	}
	return s, nil
}
