package pg

import (
	"context"

	"github.com/seralabs/tokend/internal/store/core"
)

const clientCols = `id, name, secret, has, created_at`

func (s *Store) FindClientByID(ctx context.Context, id string) (*core.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id = $1`
	return s.scanClient(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) FindClientByName(ctx context.Context, name string) (*core.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE name = $1`
	return s.scanClient(s.pool.QueryRow(ctx, q, name))
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) (*core.Client, error) {
	const q = `
		INSERT INTO clients (id, name, secret, has, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + clientCols
	has, err := marshalSet(c.Has)
	if err != nil {
		return nil, err
	}
	return s.scanClient(s.pool.QueryRow(ctx, q, c.ID, c.Name, c.Secret, has, c.CreatedAt))
}

func (s *Store) scanClient(row rowScanner) (*core.Client, error) {
	var c core.Client
	var has []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Secret, &has, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	set, err := unmarshalSet(has)
	if err != nil {
		return nil, err
	}
	c.Has = set
	return &c, nil
}
