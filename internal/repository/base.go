package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// BaseRepository provides common database functionality.
type BaseRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewBaseRepository creates a new base repository instance.
func NewBaseRepository(db *sql.DB, log *zap.Logger) *BaseRepository {
	return &BaseRepository{
		db:  db,
		log: log,
	}
}

// GetDB returns the underlying database connection.
func (r *BaseRepository) GetDB() *sql.DB {
	return r.db
}

// GetLogger returns the logger instance.
func (r *BaseRepository) GetLogger() *zap.Logger {
	return r.log
}

// WithinTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Multi-row mutations that must be observed all-or-nothing
// (message edit + history insert, bulk mark-read) go through this.
func (r *BaseRepository) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		r.log.Error("Failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}
