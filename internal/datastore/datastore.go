// Package datastore persists detection records produced by the pipeline.
package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
	"github.com/deeptracer/deeptracer-go/internal/logging"
)

// Interface abstracts record persistence so consumers do not depend on a
// concrete database.
type Interface interface {
	Open() error
	Append(record detection.DetectionRecord) (detection.DetectionRecord, error)
	GetAll() ([]detection.DetectionRecord, error)
	Get(id uint) (detection.DetectionRecord, error)
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store based on the output configuration. Returns nil when no
// output database is enabled; callers treat that as persistence disabled.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// Append inserts a new detection record and returns it with its assigned id.
func (ds *DataStore) Append(record detection.DetectionRecord) (detection.DetectionRecord, error) {
	if ds.DB == nil {
		return detection.DetectionRecord{}, errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := record.Validate(); err != nil {
		return detection.DetectionRecord{}, err
	}
	if err := ds.DB.Create(&record).Error; err != nil {
		return detection.DetectionRecord{}, errors.Newf("saving detection record: %v", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return record, nil
}

// GetAll returns every stored record in insertion order.
func (ds *DataStore) GetAll() ([]detection.DetectionRecord, error) {
	if ds.DB == nil {
		return nil, errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	var records []detection.DetectionRecord
	if err := ds.DB.Order("id asc").Find(&records).Error; err != nil {
		return nil, errors.Newf("loading detection records: %v", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return records, nil
}

// Get returns the record with the given id.
func (ds *DataStore) Get(id uint) (detection.DetectionRecord, error) {
	if ds.DB == nil {
		return detection.DetectionRecord{}, errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	var record detection.DetectionRecord
	if err := ds.DB.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return detection.DetectionRecord{}, errors.Newf("detection record %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return detection.DetectionRecord{}, errors.Newf("loading detection record %d: %v", id, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return record, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&detection.DetectionRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %v", dbType, err)
	}
	if debug {
		logging.ForService("datastore").Debug("database connection initialized",
			"type", dbType, "connection", connectionInfo)
	}
	return nil
}
