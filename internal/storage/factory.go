package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nixlim/po-stats/internal/config"
)

// NewKV builds the store selected by cfg.Backend. The second result reports
// whether the store is persistent. If a persistent backend cannot be opened
// it logs a warning and falls back to memory; only an unknown backend name
// is an error.
func NewKV(cfg config.StorageConfig) (KV, bool, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		kv  KV
		err error
	)
	switch backend {
	case "", "memory":
		return NewMemoryKV(), false, nil
	case "sqlite":
		kv, err = OpenSQLiteKV(expandTilde(cfg.Path))
	case "file":
		kv, err = OpenFileKV(expandTilde(cfg.Path))
	case "redis":
		kv, err = OpenRedisKV(cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if err != nil {
		log.Warn().Err(err).Str("backend", backend).Msg("storage unavailable, falling back to in-memory store")
		return NewMemoryKV(), false, nil
	}
	return kv, true, nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
