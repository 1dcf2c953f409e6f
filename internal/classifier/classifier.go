// Package classifier drives one classification submission against the
// external service and turns its response into a displayable outcome: a
// fake/real verdict plus a capped, sequentially-numbered set of
// reverse-search matches.
package classifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
	"github.com/deeptracer/deeptracer-go/internal/httpclient"
	"github.com/deeptracer/deeptracer-go/internal/logging"
	"github.com/deeptracer/deeptracer-go/internal/observability/metrics"
)

// maxMatches caps the reverse-search hits kept per submission. Service order
// is preserved; excess hits are dropped, not re-ranked.
const maxMatches = 5

// ImageSource is the input of one submission: either a URL or raw image
// bytes with a filename. Providing neither is an invalid input.
type ImageSource struct {
	URL      string
	Data     []byte
	Filename string
}

func (s *ImageSource) empty() bool {
	return s.URL == "" && len(s.Data) == 0
}

// reverseSearchHit mirrors one entry of the service's reverse_search_results.
type reverseSearchHit struct {
	Title string `json:"title"`
	Site  string `json:"site"`
	Image string `json:"image"`
}

// classifyResponse mirrors the classification service's JSON response.
type classifyResponse struct {
	Prediction           string             `json:"prediction"`
	Confidence           float64            `json:"confidence"`
	ReverseSearchResults []reverseSearchHit `json:"reverse_search_results"`
	Error                string             `json:"error"`
}

// RecordSink receives the detection record created for a completed
// submission. The datastore implements it.
type RecordSink interface {
	Append(record detection.DetectionRecord) (detection.DetectionRecord, error)
}

// Coordinator issues classification requests and assembles outcomes. Every
// submission is tagged with a monotonically increasing sequence number so
// consumers can discard stale responses: an outcome is current only while
// its Seq equals Latest() (last-submission-wins, not last-to-resolve-wins).
type Coordinator struct {
	client   *httpclient.Client
	endpoint string
	timeout  time.Duration
	platform string

	seq     atomic.Uint64
	sink    RecordSink
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSink sets the destination for detection records created on success.
func WithSink(sink RecordSink) Option {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(c *Coordinator) {
		c.client = client
	}
}

// New creates a Coordinator for the configured classification service.
func New(settings *conf.ClassifierSettings, opts ...Option) *Coordinator {
	c := &Coordinator{
		endpoint: settings.Endpoint,
		timeout:  time.Duration(settings.Timeout) * time.Second,
		platform: settings.Platform,
		logger:   logging.ForService("classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = httpclient.New(&httpclient.Config{DefaultTimeout: c.timeout})
	}
	return c
}

// Latest returns the sequence number of the most recently issued submission.
func (c *Coordinator) Latest() uint64 {
	return c.seq.Load()
}

// IsLatest reports whether the outcome belongs to the most recently issued
// submission. Consumers must drop outcomes for which this is false.
func (c *Coordinator) IsLatest(outcome *detection.Outcome) bool {
	return outcome != nil && outcome.Seq == c.seq.Load()
}

// Submit issues exactly one classification request for the source and
// returns the assembled outcome. No retry is attempted; transport failures
// and error payloads surface to the caller as distinct kinds, and a failed
// submission commits no state.
func (c *Coordinator) Submit(ctx context.Context, src ImageSource) (*detection.Outcome, error) {
	if src.empty() {
		c.recordSubmission("invalid_input")
		return nil, errors.New(errors.ErrInvalidInput).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	seq := c.seq.Add(1)
	submissionID := uuid.NewString()
	logger := c.logger.With("submission_id", submissionID, "seq", seq)

	data, filename, err := c.resolveSource(ctx, src, logger)
	if err != nil {
		c.recordSubmission("network_error")
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.PostMultipart(ctx, c.endpoint, "image", filename, data)
	if c.metrics != nil {
		c.metrics.RecordClassifierDuration(time.Since(start).Seconds())
	}
	if err != nil {
		c.recordSubmission("network_error")
		return nil, errors.Newf("upload failed: %w: %v", errors.ErrNetwork, err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			NetworkContext(c.endpoint, c.timeout).
			Build()
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		c.recordSubmission("network_error")
		return nil, errors.Newf("reading response failed: %w: %v", errors.ErrNetwork, err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		c.recordSubmission("network_error")
		return nil, errors.Newf("service returned status %d: %w", resp.StatusCode, errors.ErrNetwork).
			Component("classifier").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.recordSubmission("service_error")
		return nil, errors.Newf("undecodable response: %w: %v", errors.ErrService, err).
			Component("classifier").
			Category(errors.CategoryClassifier).
			Build()
	}

	// An explicit error payload is surfaced as its own kind so the UI never
	// renders it as "no deepfake detected".
	if parsed.Error != "" {
		c.recordSubmission("service_error")
		return nil, errors.Newf("%w: %s", errors.ErrService, parsed.Error).
			Component("classifier").
			Category(errors.CategoryClassifier).
			Context("service_error", parsed.Error).
			Build()
	}

	outcome := c.assembleOutcome(&parsed, seq)
	c.commitRecord(outcome, logger)

	if c.metrics != nil {
		c.metrics.RecordMatchesReturned(len(outcome.Matches))
	}
	c.recordSubmission(statusOf(outcome))

	logger.Info("submission classified",
		"prediction", parsed.Prediction,
		"confidence", parsed.Confidence,
		"matches", len(outcome.Matches))

	return outcome, nil
}

// resolveSource produces the image bytes to upload: direct bytes, or a fetch
// when the source is a URL.
func (c *Coordinator) resolveSource(ctx context.Context, src ImageSource, logger *slog.Logger) (data []byte, filename string, err error) {
	if len(src.Data) > 0 {
		filename = src.Filename
		if filename == "" {
			filename = "upload.jpg"
		}
		return src.Data, filename, nil
	}

	logger.Debug("fetching image from URL")
	resp, err := c.client.Get(ctx, src.URL)
	if err != nil {
		return nil, "", errors.Newf("image fetch failed: %w: %v", errors.ErrNetwork, err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			NetworkContext(src.URL, c.timeout).
			Build()
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, "", errors.Newf("reading fetched image failed: %w: %v", errors.ErrNetwork, err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			NetworkContext(src.URL, c.timeout).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("image fetch returned status %d: %w", resp.StatusCode, errors.ErrNetwork).
			Component("classifier").
			Category(errors.CategoryNetwork).
			NetworkContext(src.URL, c.timeout).
			Build()
	}

	filename = "download.jpg"
	if u, parseErr := url.Parse(src.URL); parseErr == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			filename = base
		}
	}
	return body, filename, nil
}

// assembleOutcome caps the hits, assigns positional ids starting at 1 and
// derives the verdict. The prediction match is case-sensitive.
func (c *Coordinator) assembleOutcome(parsed *classifyResponse, seq uint64) *detection.Outcome {
	hits := parsed.ReverseSearchResults
	if len(hits) > maxMatches {
		hits = hits[:maxMatches]
	}

	matches := make([]detection.MatchResult, 0, len(hits))
	for i := range hits {
		matches = append(matches, detection.MatchResult{
			ID:          i + 1,
			SourceLabel: hits[i].Title,
			SourceURL:   hits[i].Site,
			ImageURL:    hits[i].Image,
		})
	}

	return &detection.Outcome{
		Matches:    matches,
		IsDeepfake: parsed.Prediction == detection.StatusFake,
		Confidence: parsed.Confidence,
		Seq:        seq,
	}
}

// commitRecord appends a detection record for the completed submission. A
// sink failure does not fail the submission; the outcome is already valid.
func (c *Coordinator) commitRecord(outcome *detection.Outcome, logger *slog.Logger) {
	if c.sink == nil {
		return
	}

	status := detection.StatusReal
	if outcome.IsDeepfake {
		status = detection.StatusFake
	}
	record := detection.NewRecord(c.platform, detection.FormatImage, status, outcome.Confidence)

	if _, err := c.sink.Append(record); err != nil {
		logger.Warn("failed to persist detection record", "error", err)
	}
}

func (c *Coordinator) recordSubmission(result string) {
	if c.metrics != nil {
		c.metrics.RecordSubmission(result)
	}
}

func statusOf(outcome *detection.Outcome) string {
	if outcome.IsDeepfake {
		return detection.StatusFake
	}
	return detection.StatusReal
}
