// Package sqlite is a single-file store driver for dev and single-node
// deployments. It enforces the same uniqueness contract as the pg driver;
// a single writer plus the conditioned renewal update keeps the conflict
// semantics identical.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seralabs/tokend/internal/permission"
	"github.com/seralabs/tokend/internal/store/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	has           TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	secret     TEXT NOT NULL DEFAULT '',
	has        TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id),
	client_id      TEXT NOT NULL REFERENCES clients(id),
	access         TEXT NOT NULL UNIQUE,
	refresh        TEXT NOT NULL UNIQUE,
	created        INTEGER NOT NULL,
	accessible_ms  INTEGER NOT NULL,
	refreshable_ms INTEGER NOT NULL,
	has            TEXT NOT NULL DEFAULT '{}',
	UNIQUE (user_id, client_id)
);
`

type Store struct{ db *sql.DB }

func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	// modernc.org/sqlite surfaces constraint failures in the error text
	// (SQLITE_CONSTRAINT_UNIQUE / "UNIQUE constraint failed").
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return core.ErrConflict
	}
	return err
}

func toMillis(t time.Time) int64   { return t.UTC().UnixMilli() }
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func marshalSet(s permission.Set) (string, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalSet(v string) (permission.Set, error) {
	if v == "" || v == "{}" {
		return nil, nil
	}
	var s permission.Set
	if err := json.Unmarshal([]byte(v), &s); err != nil {
		return nil, err
	}
	return s, nil
}

// ───────────────────────── users ─────────────────────────

const userCols = `id, email, first_name, last_name, password_hash, has, created_at`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	has, err := marshalSet(u.Has)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash, has, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, has, toMillis(u.CreatedAt))
	if err != nil {
		return nil, mapErr(err)
	}
	return s.FindUserByID(ctx, u.ID)
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var has string
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &has, &createdAt); err != nil {
		return nil, mapErr(err)
	}
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	u.Has = set
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// ───────────────────────── clients ─────────────────────────

const clientCols = `id, name, secret, has, created_at`

func (s *Store) FindClientByID(ctx context.Context, id string) (*core.Client, error) {
	return scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE id = ?`, id))
}

func (s *Store) FindClientByName(ctx context.Context, name string) (*core.Client, error) {
	return scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE name = ?`, name))
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) (*core.Client, error) {
	has, err := marshalSet(c.Has)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret, has, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Secret, has, toMillis(c.CreatedAt))
	if err != nil {
		return nil, mapErr(err)
	}
	return s.FindClientByID(ctx, c.ID)
}

func scanClient(row *sql.Row) (*core.Client, error) {
	var c core.Client
	var has string
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Secret, &has, &createdAt); err != nil {
		return nil, mapErr(err)
	}
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	c.Has = set
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

// ───────────────────────── tokens ─────────────────────────

const tokenCols = `id, user_id, client_id, access, refresh, created, accessible_ms, refreshable_ms, has`

func (s *Store) FindTokenByID(ctx context.Context, id string) (*core.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE id = ?`, id))
}

func (s *Store) FindTokenByUserClient(ctx context.Context, userID, clientID string) (*core.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE user_id = ? AND client_id = ?`, userID, clientID))
}

func (s *Store) FindTokenByRefresh(ctx context.Context, refresh string) (*core.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE refresh = ?`, refresh))
}

func (s *Store) FindTokenByAccess(ctx context.Context, access string) (*core.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE access = ?`, access))
}

func (s *Store) CreateToken(ctx context.Context, t *core.Token) (*core.Token, error) {
	has, err := marshalSet(t.Has)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, client_id, access, refresh, created, accessible_ms, refreshable_ms, has)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.Access, t.Refresh, toMillis(t.Created),
		t.Accessible.Milliseconds(), t.Refreshable.Milliseconds(), has)
	if err != nil {
		return nil, mapErr(err)
	}
	return s.FindTokenByID(ctx, t.ID)
}

func (s *Store) RenewToken(ctx context.Context, id string, expectedCreated time.Time, access, refresh string, created time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET access = ?, refresh = ?, created = ? WHERE id = ? AND created = ?`,
		access, refresh, toMillis(created), id, toMillis(expectedCreated))
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, ferr := s.FindTokenByID(ctx, id); ferr != nil {
			return ferr
		}
		return core.ErrConflict
	}
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanToken(row *sql.Row) (*core.Token, error) {
	var t core.Token
	var has string
	var created, accessibleMs, refreshableMs int64
	if err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.Access, &t.Refresh, &created, &accessibleMs, &refreshableMs, &has); err != nil {
		return nil, mapErr(err)
	}
	t.Created = fromMillis(created)
	t.Accessible = time.Duration(accessibleMs) * time.Millisecond
	t.Refreshable = time.Duration(refreshableMs) * time.Millisecond
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	t.Has = set
	return &t, nil
}
