package detection

import (
	"strings"
	"time"

	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// TimeFrame selects the rolling window of the dashboard views.
type TimeFrame string

const (
	TimeFrameWeek  TimeFrame = "week"
	TimeFrameMonth TimeFrame = "month"
	TimeFrameYear  TimeFrame = "year"
)

// Cutoff returns the inclusive lower bound of the window ending at now.
// A week is a fixed 7 days; month and year are calendar-relative.
func (tf TimeFrame) Cutoff(now time.Time) time.Time {
	switch tf {
	case TimeFrameWeek:
		return now.AddDate(0, 0, -7)
	case TimeFrameMonth:
		return now.AddDate(0, -1, 0)
	case TimeFrameYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// FilterCriteria narrows the detection log for the dashboard views.
// Platform and MediaFormat are exact, case-insensitive matches when set.
type FilterCriteria struct {
	TimeFrame   TimeFrame `json:"time_frame"`
	Platform    string    `json:"platform,omitempty"`
	MediaFormat string    `json:"media_format,omitempty"`
}

// Validate rejects unknown time frames. Empty TimeFrame defaults to week.
func (c *FilterCriteria) Validate() error {
	switch c.TimeFrame {
	case TimeFrameWeek, TimeFrameMonth, TimeFrameYear:
		return nil
	case "":
		c.TimeFrame = TimeFrameWeek
		return nil
	default:
		return errors.Newf("unknown time frame %q", c.TimeFrame).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Matches reports whether the record passes the platform and media format
// predicates. The time window is evaluated separately by the engine.
func (c *FilterCriteria) Matches(r *DetectionRecord) bool {
	if c.Platform != "" && !strings.EqualFold(c.Platform, r.Platform) {
		return false
	}
	if c.MediaFormat != "" && !strings.EqualFold(c.MediaFormat, r.MediaFormat) {
		return false
	}
	return true
}

// AggregationBucket is one named count in a chart series.
type AggregationBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
