// Package detection defines the core data model shared by the submission,
// triage, analytics and export pipelines.
package detection

import (
	"strings"
	"time"

	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// Media format values accepted in detection records.
const (
	FormatImage = "image"
	FormatVideo = "video"
	FormatAudio = "audio"
)

// Verdict values produced by the classifier. Status is never user-editable.
const (
	StatusFake = "fake"
	StatusReal = "real"
)

// timestampLayout is the combined wire form of the Date and Time fields.
const timestampLayout = "2006-01-02 15:04:05"

// DetectionRecord is one historical entry in the detection log. Records are
// immutable once created and are never deleted; reporting acts on match
// results, not on the log.
type DetectionRecord struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Date        string  `gorm:"index:idx_records_date" json:"date"`
	Time        string  `json:"time"`
	Platform    string  `gorm:"index:idx_records_platform" json:"platform"`
	MediaFormat string  `json:"media_format"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
}

// NewRecord builds a record stamped with the current wall clock.
func NewRecord(platform, mediaFormat, status string, confidence float64) DetectionRecord {
	now := time.Now()
	return DetectionRecord{
		Date:        now.Format("2006-01-02"),
		Time:        now.Format("15:04:05"),
		Platform:    platform,
		MediaFormat: mediaFormat,
		Status:      status,
		Confidence:  confidence,
	}
}

// Validate checks the record's invariants: confidence in [0,1] and known
// status and media format values.
func (r *DetectionRecord) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.Newf("confidence %f outside [0,1]", r.Confidence).
			Component("detection").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}
	switch r.Status {
	case StatusFake, StatusReal:
	default:
		return errors.Newf("unknown status %q", r.Status).
			Component("detection").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}
	switch strings.ToLower(r.MediaFormat) {
	case FormatImage, FormatVideo, FormatAudio:
	default:
		return errors.Newf("unknown media format %q", r.MediaFormat).
			Component("detection").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}
	return nil
}

// Timestamp parses the Date and Time fields into a single point in time.
// Returns ErrMalformedRecord when either field fails to parse; callers
// exclude such records from time-windowed views rather than failing.
func (r *DetectionRecord) Timestamp() (time.Time, error) {
	ts, err := time.ParseInLocation(timestampLayout, r.Date+" "+r.Time, time.Local)
	if err != nil {
		return time.Time{}, errors.Newf("record %d: %w", r.ID, errors.ErrMalformedRecord).
			Component("detection").
			Category(errors.CategoryFeedParsing).
			Context("date", r.Date).
			Context("time", r.Time).
			Build()
	}
	return ts, nil
}

// MergeKey identifies a record for de-duplication when the fetched feed is
// merged with bundled seed records. Two records with the same key are
// considered the same observation regardless of source.
func (r *DetectionRecord) MergeKey() string {
	return r.Date + "|" + r.Time + "|" + strings.ToLower(r.Platform)
}
