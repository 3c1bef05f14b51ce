package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/store/sqlite"
)

// StoreHandle wraps the score store with shutdown capability.
type StoreHandle struct {
	store.ScoreStore
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured score store backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Data.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var (
		backend store.ScoreStore
		path    string
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		path = filepath.Join(cfg.Data.BasePath, "scores.db")
		backend, err = sqlite.Open(path, log.Logger)
	case config.BackendBadger:
		path = filepath.Join(cfg.Data.BasePath, "db")
		backend, err = store.Open(path, log.Logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Score store initialized",
		"backend", cfg.Store.Backend,
		"path", path,
		"timeout", cfg.Store.Timeout,
	)

	bounded := store.WithTimeout(backend, cfg.Store.Timeout).WithPurgeTimeout(cfg.Store.PurgeTimeout)
	return &StoreHandle{ScoreStore: bounded}, nil
}
