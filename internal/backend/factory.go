package backend

import (
	"fmt"
	"log/slog"

	"github.com/stepanyanprod-creator/finance-bot/internal/config"
	"github.com/stepanyanprod-creator/finance-bot/internal/storage"
	"github.com/stepanyanprod-creator/finance-bot/internal/storage/memory"
)

// Open creates a Store based on the configured backend type. The caller owns
// the returned store and must Close it.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendType := BackendType(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch backendType {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return store, nil
	case MemoryBackend:
		logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}
