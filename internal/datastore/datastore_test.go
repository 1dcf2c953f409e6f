package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&detection.DetectionRecord{}))

	return &DataStore{DB: db}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	ds := newTestStore(t)

	first, err := ds.Append(detection.NewRecord("instagram", detection.FormatImage, detection.StatusFake, 0.9))
	require.NoError(t, err)
	second, err := ds.Append(detection.NewRecord("instagram", detection.FormatImage, detection.StatusReal, 0.2))
	require.NoError(t, err)

	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	ds := newTestStore(t)

	record := detection.NewRecord("instagram", detection.FormatImage, "unsure", 0.5)
	_, err := ds.Append(record)
	require.Error(t, err)

	records, err := ds.GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetAllReturnsInsertionOrder(t *testing.T) {
	ds := newTestStore(t)

	platforms := []string{"X", "Facebook", "YouTube"}
	for _, p := range platforms {
		_, err := ds.Append(detection.NewRecord(p, detection.FormatVideo, detection.StatusFake, 0.7))
		require.NoError(t, err)
	}

	records, err := ds.GetAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, p := range platforms {
		assert.Equal(t, p, records[i].Platform)
	}
}

func TestGetMissingRecordIsNotFound(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.Get(42)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUninitializedStoreErrors(t *testing.T) {
	ds := &DataStore{}

	_, err := ds.Append(detection.NewRecord("X", detection.FormatImage, detection.StatusFake, 0.9))
	assert.Error(t, err)
	_, err = ds.GetAll()
	assert.Error(t, err)
}
