// Package cache abstracts the short-TTL byte cache used by the bearer-auth
// middleware (access string → token id). Memory for single-node setups,
// redis when several instances share the lookup load.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/seralabs/tokend/internal/cache/memory"
	"github.com/seralabs/tokend/internal/cache/redis"
)

type Client interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

type Config struct {
	Kind       string // memory | redis
	DefaultTTL time.Duration
	Redis      struct {
		Addr string
		DB   int
	}
}

func New(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Kind) {
	case "redis":
		return redis.New(cfg.Redis.Addr, cfg.Redis.DB), nil
	case "memory", "":
		return memory.New(cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache kind: %s", cfg.Kind)
	}
}
