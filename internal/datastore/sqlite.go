package datastore

import (
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and runs migrations.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite output enabled but no path configured").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dir, fileName := filepath.Split(path)
	absoluteFilePath := filepath.Join(conf.GetBasePath(dir), fileName)

	db, err := gorm.Open(sqlite.Open(absoluteFilePath), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return errors.Newf("failed to open SQLite database: %v", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", absoluteFilePath).
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absoluteFilePath)
}

// Close is a no-op for SQLite; the pool is released with the process.
func (store *SQLiteStore) Close() error {
	return nil
}
