// Package memory is an in-process store driver. It honors the same
// uniqueness and conflict contract as the SQL drivers, which makes it the
// reference implementation for engine tests and small dev setups.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/seralabs/tokend/internal/store/core"
)

type Store struct {
	mu      sync.RWMutex
	users   map[string]*core.User   // by id
	clients map[string]*core.Client // by id
	tokens  map[string]*core.Token  // by id
}

func New() *Store {
	return &Store{
		users:   make(map[string]*core.User),
		clients: make(map[string]*core.Client),
		tokens:  make(map[string]*core.Token),
	}
}

// ───────────────────────── users ─────────────────────────

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, core.ErrConflict
		}
	}
	cp := copyUser(u)
	s.users[cp.ID] = cp
	return copyUser(cp), nil
}

// ───────────────────────── clients ─────────────────────────

func (s *Store) FindClientByID(ctx context.Context, id string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyClient(c), nil
}

func (s *Store) FindClientByName(ctx context.Context, name string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.Name == name {
			return copyClient(c), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) (*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clients {
		if existing.Name == c.Name {
			return nil, core.ErrConflict
		}
	}
	cp := copyClient(c)
	s.clients[cp.ID] = cp
	return copyClient(cp), nil
}

// ───────────────────────── tokens ─────────────────────────

func (s *Store) FindTokenByID(ctx context.Context, id string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyToken(t), nil
}

func (s *Store) FindTokenByUserClient(ctx context.Context, userID, clientID string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.UserID == userID && t.ClientID == clientID {
			return copyToken(t), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindTokenByRefresh(ctx context.Context, refresh string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.Refresh == refresh {
			return copyToken(t), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindTokenByAccess(ctx context.Context, access string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.Access == access {
			return copyToken(t), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) CreateToken(ctx context.Context, t *core.Token) (*core.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tokens {
		if existing.UserID == t.UserID && existing.ClientID == t.ClientID {
			return nil, core.ErrConflict
		}
		if existing.Access == t.Access || existing.Refresh == t.Refresh {
			return nil, core.ErrConflict
		}
	}
	cp := copyToken(t)
	s.tokens[cp.ID] = cp
	return copyToken(cp), nil
}

func (s *Store) RenewToken(ctx context.Context, id string, expectedCreated time.Time, access, refresh string, created time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return core.ErrNotFound
	}
	// A differing Created means a concurrent renewal already landed.
	if !t.Created.Equal(expectedCreated) {
		return core.ErrConflict
	}
	t.Access = access
	t.Refresh = refresh
	t.Created = created
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

func copyUser(u *core.User) *core.User {
	cp := *u
	cp.Has = u.Has.Clone()
	return &cp
}

func copyClient(c *core.Client) *core.Client {
	cp := *c
	cp.Has = c.Has.Clone()
	return &cp
}

func copyToken(t *core.Token) *core.Token {
	cp := *t
	cp.Has = t.Has.Clone()
	return &cp
}
