// Package analytics implements the filter, aggregation and pagination
// transform that turns the detection log into chart-ready summaries and
// export-ready tables. The transform is pure and deterministic: identical
// inputs always produce identical results, which makes it safe to memoize.
package analytics

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/logging"
	"github.com/deeptracer/deeptracer-go/internal/observability/metrics"
)

const (
	defaultCacheTTL     = time.Minute
	defaultCacheCleanup = 5 * time.Minute
)

// ProcessResult is the full derived view of the log for one criteria/page pair.
type ProcessResult struct {
	Filtered   []detection.DetectionRecord `json:"filtered"`
	PageItems  []detection.DetectionRecord `json:"page_items"`
	Page       int                         `json:"page"`
	TotalPages int                         `json:"total_pages"`

	PlatformBuckets    []detection.AggregationBucket `json:"platform_buckets"`
	StatusBuckets      []detection.AggregationBucket `json:"status_buckets"`
	MediaFormatBuckets []detection.AggregationBucket `json:"media_format_buckets"`
	RankingBuckets     []detection.AggregationBucket `json:"ranking_buckets"`
}

// Engine evaluates filter criteria against the detection log. The zero value
// is not usable; construct with NewEngine.
type Engine struct {
	now     func() time.Time
	cache   *gocache.Cache
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for time-frame cutoffs. Tests use
// this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine with a short-lived result cache. Cached entries
// are keyed by a fingerprint of the log contents plus the criteria, so any
// change to the log yields a fresh computation; entries expire after a minute
// because the time-frame cutoff moves with the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:    time.Now,
		cache:  gocache.New(defaultCacheTTL, defaultCacheCleanup),
		logger: logging.ForService("analytics"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process filters the log by the criteria, aggregates the filtered set into
// chart buckets and slices out the requested page. Records with unparseable
// timestamps are excluded from time-windowed views rather than failing the
// whole view. The page is clamped to [1, max(totalPages,1)].
func (e *Engine) Process(log []detection.DetectionRecord, criteria detection.FilterCriteria, page, pageSize int) ProcessResult {
	if pageSize <= 0 {
		pageSize = 10
	}

	if e.metrics != nil {
		start := time.Now()
		defer func() {
			e.metrics.RecordAnalyticsDuration(time.Since(start).Seconds())
		}()
	}

	// Cutoff is truncated to the minute so cached results stay valid for the
	// cache TTL without drifting against fresh computations.
	cutoff := criteria.TimeFrame.Cutoff(e.now().Truncate(time.Minute))

	key := cacheKey(log, criteria, page, pageSize, cutoff)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(ProcessResult)
	}

	filtered, malformed := e.filter(log, criteria, cutoff)
	if malformed > 0 {
		e.logger.Warn("records excluded from time window", "malformed", malformed)
	}

	result := ProcessResult{
		Filtered:           filtered,
		PlatformBuckets:    bucketBy(filtered, func(r *detection.DetectionRecord) string { return r.Platform }),
		StatusBuckets:      bucketBy(filtered, func(r *detection.DetectionRecord) string { return r.Status }),
		MediaFormatBuckets: bucketBy(filtered, func(r *detection.DetectionRecord) string { return r.MediaFormat }),
	}
	result.RankingBuckets = ranking(result.PlatformBuckets)
	result.Page, result.TotalPages, result.PageItems = paginate(filtered, page, pageSize)

	e.cache.SetDefault(key, result)
	return result
}

// filter applies the time window, platform and media format predicates in
// order. Returns the surviving records and the count excluded for having an
// unparseable timestamp.
func (e *Engine) filter(log []detection.DetectionRecord, criteria detection.FilterCriteria, cutoff time.Time) (filtered []detection.DetectionRecord, malformed int) {
	filtered = make([]detection.DetectionRecord, 0, len(log))
	for i := range log {
		r := &log[i]
		ts, err := r.Timestamp()
		if err != nil {
			malformed++
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		if !criteria.Matches(r) {
			continue
		}
		filtered = append(filtered, *r)
	}
	return filtered, malformed
}

// bucketBy groups the records by the key function, preserving
// first-encountered order of keys.
func bucketBy(records []detection.DetectionRecord, keyFn func(*detection.DetectionRecord) string) []detection.AggregationBucket {
	buckets := []detection.AggregationBucket{}
	index := make(map[string]int)
	for i := range records {
		key := keyFn(&records[i])
		if pos, ok := index[key]; ok {
			buckets[pos].Count++
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, detection.AggregationBucket{Key: key, Count: 1})
	}
	return buckets
}

// ranking returns the platform buckets sorted by count descending. The sort
// is stable so ties keep first-encountered order, which the ranking chart
// relies on for deterministic output.
func ranking(platformBuckets []detection.AggregationBucket) []detection.AggregationBucket {
	ranked := make([]detection.AggregationBucket, len(platformBuckets))
	copy(ranked, platformBuckets)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// paginate clamps the requested page and slices it out of the filtered set.
// An empty filtered set has zero pages but still reports page 1.
func paginate(filtered []detection.DetectionRecord, page, pageSize int) (clampedPage, totalPages int, pageItems []detection.DetectionRecord) {
	totalPages = (len(filtered) + pageSize - 1) / pageSize

	clampedPage = page
	if clampedPage < 1 {
		clampedPage = 1
	}
	if totalPages > 0 && clampedPage > totalPages {
		clampedPage = totalPages
	}
	if totalPages == 0 {
		clampedPage = 1
		return clampedPage, totalPages, []detection.DetectionRecord{}
	}

	start := (clampedPage - 1) * pageSize
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return clampedPage, totalPages, filtered[start:end]
}

// cacheKey identifies one Process invocation. The log is identified by a
// fingerprint over every record's content: merged logs carry unkeyed seed
// records, so size and boundary ids alone cannot tell two logs apart.
func cacheKey(log []detection.DetectionRecord, criteria detection.FilterCriteria, page, pageSize int, cutoff time.Time) string {
	h := fnv.New64a()
	for i := range log {
		r := &log[i]
		fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%g;",
			r.ID, r.Date, r.Time, r.Platform, r.MediaFormat, r.Status, r.Confidence)
	}
	return fmt.Sprintf("%x|%s|%s|%s|%d|%d|%d",
		h.Sum64(), criteria.TimeFrame, criteria.Platform, criteria.MediaFormat,
		page, pageSize, cutoff.Unix())
}
