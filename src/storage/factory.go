package storage

import (
	"strings"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

// NewDatabase returns the store selected by storage.db_type
func NewDatabase(cfg models.MStorageConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch strings.ToLower(cfg.DBType) {
	case "", "sqlite":
		db, err := NewAsyncSQLiteDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres", "postgresql":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, helpers.NewConfigurationError("unsupported storage.db_type " + cfg.DBType)
	}
}
