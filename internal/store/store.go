// Package store selects and opens a concrete driver behind core.Repository.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seralabs/tokend/internal/store/core"
	"github.com/seralabs/tokend/internal/store/memory"
	"github.com/seralabs/tokend/internal/store/pg"
	"github.com/seralabs/tokend/internal/store/sqlite"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres struct {
		MaxConns        int32
		MinConns        int32
		ConnMaxLifetime time.Duration
	}
}

func Open(ctx context.Context, cfg Config) (core.Repository, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "pg", "postgresql":
		return pg.New(ctx, cfg.DSN, pg.Config{
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	case "sqlite":
		return sqlite.Open(cfg.DSN)
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
