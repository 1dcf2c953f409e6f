// Package feed retrieves the historical detection feed from the backend and
// merges it with the bundled seed records that ship with the dashboard.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
	"github.com/deeptracer/deeptracer-go/internal/httpclient"
	"github.com/deeptracer/deeptracer-go/internal/logging"
	"github.com/deeptracer/deeptracer-go/internal/observability/metrics"
)

// feedRecord mirrors one element of the backend's predictions array.
type feedRecord struct {
	ID          uint    `json:"id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Platform    string  `json:"platform"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	MediaFormat string  `json:"media_format"`
}

// Fetcher pulls detection records from the configured feed endpoint.
type Fetcher struct {
	client   *httpclient.Client
	endpoint string
	timeout  time.Duration
	metrics  *metrics.PipelineMetrics
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a Fetcher for the configured feed endpoint.
func NewFetcher(settings *conf.FeedSettings, opts ...Option) *Fetcher {
	f := &Fetcher{
		endpoint: settings.Endpoint,
		timeout:  time.Duration(settings.Timeout) * time.Second,
		logger:   logging.ForService("feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = httpclient.New(&httpclient.Config{DefaultTimeout: f.timeout})
	}
	return f
}

// Fetch retrieves the feed and converts it to detection records. Malformed
// entries are dropped, never passed downstream; a record that fails
// validation or whose timestamp does not parse is counted and logged but
// does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context) ([]detection.DetectionRecord, error) {
	resp, err := f.client.Get(ctx, f.endpoint)
	if err != nil {
		return nil, errors.Newf("feed fetch failed: %w: %v", errors.ErrNetwork, err).
			Component("feed").
			Category(errors.CategoryNetwork).
			NetworkContext(f.endpoint, f.timeout).
			Build()
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, errors.Newf("reading feed response failed: %w: %v", errors.ErrNetwork, err).
			Component("feed").
			Category(errors.CategoryNetwork).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("feed returned status %d: %w", resp.StatusCode, errors.ErrNetwork).
			Component("feed").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var raw []feedRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Newf("undecodable feed response: %v", err).
			Component("feed").
			Category(errors.CategoryFeedParsing).
			Build()
	}

	records := make([]detection.DetectionRecord, 0, len(raw))
	dropped := 0
	for i := range raw {
		record, err := convert(&raw[i])
		if err != nil {
			dropped++
			f.logger.Warn("dropping malformed feed record",
				"index", i, "id", raw[i].ID, "error", err)
			continue
		}
		records = append(records, record)
	}
	if dropped > 0 && f.metrics != nil {
		f.metrics.RecordFeedRecords("malformed", dropped)
	}

	f.logger.Debug("feed fetched", "records", len(records), "dropped", dropped)
	return records, nil
}

// convert validates one wire record and maps it onto the domain type.
// Status and media format are normalized to lower case on ingest.
func convert(raw *feedRecord) (detection.DetectionRecord, error) {
	record := detection.DetectionRecord{
		ID:          raw.ID,
		Date:        raw.Date,
		Time:        raw.Time,
		Platform:    raw.Platform,
		MediaFormat: strings.ToLower(raw.MediaFormat),
		Status:      strings.ToLower(raw.Status),
		Confidence:  raw.Confidence,
	}
	if err := record.Validate(); err != nil {
		return detection.DetectionRecord{}, err
	}
	if _, err := record.Timestamp(); err != nil {
		return detection.DetectionRecord{}, err
	}
	return record, nil
}

// Merge combines fetched records with the seed set. Duplicates are detected
// by date, time and platform; the first occurrence wins, so fetched records
// shadow seed records with the same key.
func (f *Fetcher) Merge(fetched, seed []detection.DetectionRecord) []detection.DetectionRecord {
	merged := make([]detection.DetectionRecord, 0, len(fetched)+len(seed))
	seen := make(map[string]struct{}, len(fetched)+len(seed))
	duplicates := 0

	for _, batch := range [][]detection.DetectionRecord{fetched, seed} {
		for _, record := range batch {
			key := record.MergeKey()
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, record)
		}
	}

	if f.metrics != nil {
		f.metrics.RecordFeedRecords("merged", len(merged))
		if duplicates > 0 {
			f.metrics.RecordFeedRecords("duplicate", duplicates)
		}
	}
	return merged
}

// SeedRecords returns the bundled historical records shown before any live
// data arrives. Callers receive a fresh copy.
func SeedRecords() []detection.DetectionRecord {
	seed := []detection.DetectionRecord{
		{Date: "2024-10-01", Time: "12:00:00", Platform: "X", MediaFormat: "image", Status: "fake", Confidence: 0.85},
		{Date: "2024-10-01", Time: "13:00:00", Platform: "Facebook", MediaFormat: "video", Status: "real", Confidence: 0.10},
		{Date: "2024-10-02", Time: "15:00:00", Platform: "YouTube", MediaFormat: "audio", Status: "fake", Confidence: 0.70},
		{Date: "2024-10-03", Time: "16:00:00", Platform: "X", MediaFormat: "image", Status: "fake", Confidence: 0.60},
		{Date: "2024-10-04", Time: "17:00:00", Platform: "YouTube", MediaFormat: "video", Status: "fake", Confidence: 0.70},
		{Date: "2024-10-05", Time: "18:00:00", Platform: "YouTube", MediaFormat: "video", Status: "real", Confidence: 0.80},
	}
	return seed
}
