package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeptracer/deeptracer-go/internal/analytics"
	"github.com/deeptracer/deeptracer-go/internal/classifier"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/feed"
	"github.com/deeptracer/deeptracer-go/internal/httpclient"
)

const (
	classifierEndpoint = "http://classifier.local/upload"
	feedEndpoint       = "http://feed.local/api/predictions"
)

// fixedNow keeps time-frame cutoffs deterministic relative to the seed set.
var fixedNow = time.Date(2024, time.October, 15, 12, 0, 0, 0, time.Local)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	hc := httpclient.New(&httpclient.Config{DefaultTimeout: 5 * time.Second})
	httpmock.ActivateNonDefault(hc.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	settings := &conf.Settings{}
	settings.Classifier = conf.ClassifierSettings{Endpoint: classifierEndpoint, Timeout: 5, Platform: "instagram"}
	settings.Feed = conf.FeedSettings{Endpoint: feedEndpoint, Timeout: 5}
	settings.Dashboard = conf.DashboardSettings{PageSize: 10}

	coordinator := classifier.New(&settings.Classifier, classifier.WithHTTPClient(hc))
	fetcher := feed.NewFetcher(&settings.Feed, feed.WithHTTPClient(hc))
	engine := analytics.NewEngine(analytics.WithClock(func() time.Time { return fixedNow }))

	e := echo.New()
	return New(e, nil, settings, coordinator, fetcher, engine)
}

func registerClassifier(hits int) {
	entries := make([]string, 0, hits)
	for i := 0; i < hits; i++ {
		entries = append(entries,
			fmt.Sprintf(`{"title":"match %d","site":"https://example.com/%d","image":"https://example.com/%d.jpg"}`, i, i, i))
	}
	body := fmt.Sprintf(`{"prediction":"fake","confidence":0.9,"reverse_search_results":[%s]}`,
		strings.Join(entries, ","))
	httpmock.RegisterResponder(http.MethodPost, classifierEndpoint,
		httpmock.NewStringResponder(http.StatusOK, body))
}

func registerEmptyFeed() {
	httpmock.RegisterResponder(http.MethodGet, feedEndpoint,
		httpmock.NewStringResponder(http.StatusOK, "[]"))
}

func multipartImage(t *testing.T) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func doRequest(c *Controller, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func submitImage(t *testing.T, c *Controller) detectResponse {
	t.Helper()

	body, contentType := multipartImage(t)
	rec := doRequest(c, http.MethodPost, "/api/v1/detect", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestDetectInstallsResultSet(t *testing.T) {
	c := newTestController(t)
	registerClassifier(7)

	resp := submitImage(t, c)
	assert.True(t, resp.IsDeepfake)
	assert.False(t, resp.Stale)
	require.Len(t, resp.Results, 5, "hits beyond the first five are dropped")
	for i, m := range resp.Results {
		assert.Equal(t, i+1, m.ID)
	}

	rec := doRequest(c, http.MethodGet, "/api/v1/results", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results.Results, 5)
	assert.Equal(t, 5, results.Total)
	assert.Equal(t, 0, results.Reported)
}

func TestDetectWithoutInputIsBadRequest(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v1/detect", echo.MIMEApplicationJSON, strings.NewReader("{}"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectServiceErrorIsBadGateway(t *testing.T) {
	c := newTestController(t)
	httpmock.RegisterResponder(http.MethodPost, classifierEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"error":"no face found"}`))

	body, contentType := multipartImage(t)
	rec := doRequest(c, http.MethodPost, "/api/v1/detect", contentType, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "no face found")
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestReportHidesResultAndIsIdempotent(t *testing.T) {
	c := newTestController(t)
	registerClassifier(5)
	submitImage(t, c)

	rec := doRequest(c, http.MethodPost, "/api/v1/results/2/report", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.NewlyReported)
	assert.Equal(t, 4, report.Remaining)

	// Reporting the same id again changes nothing.
	rec = doRequest(c, http.MethodPost, "/api/v1/results/2/report", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 0, report.NewlyReported)
	assert.Equal(t, 4, report.Remaining)

	results := doRequest(c, http.MethodGet, "/api/v1/results", "", nil)
	var listed resultsResponse
	require.NoError(t, json.Unmarshal(results.Body.Bytes(), &listed))
	require.Len(t, listed.Results, 4)
	for _, m := range listed.Results {
		assert.NotEqual(t, 2, m.ID)
	}
}

func TestReportUnknownIDIsNotFound(t *testing.T) {
	c := newTestController(t)
	registerClassifier(3)
	submitImage(t, c)

	rec := doRequest(c, http.MethodPost, "/api/v1/results/9/report", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAllSecondRunReportsNothing(t *testing.T) {
	c := newTestController(t)
	registerClassifier(4)
	submitImage(t, c)

	rec := doRequest(c, http.MethodPost, "/api/v1/results/report-all", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 4, report.NewlyReported)

	rec = doRequest(c, http.MethodPost, "/api/v1/results/report-all", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 0, report.NewlyReported)
}

func TestReportedStateOnlyClearsOnNewSubmission(t *testing.T) {
	c := newTestController(t)
	registerClassifier(3)
	submitImage(t, c)

	doRequest(c, http.MethodPost, "/api/v1/results/report-all", "", nil)

	// No route may restore hidden matches while this result set is live.
	rec := doRequest(c, http.MethodPost, "/api/v1/results/reset", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/results", "", nil)
	var listed resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Results)
	assert.Equal(t, 3, listed.Reported)
}

func TestNewSubmissionResetsTriage(t *testing.T) {
	c := newTestController(t)
	registerClassifier(3)
	submitImage(t, c)
	doRequest(c, http.MethodPost, "/api/v1/results/1/report", "", nil)

	submitImage(t, c)

	rec := doRequest(c, http.MethodGet, "/api/v1/results", "", nil)
	var listed resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Results, 3, "a new result set starts with an empty ledger")
}

func TestAnalyticsAggregatesSeedRecords(t *testing.T) {
	c := newTestController(t)
	registerEmptyFeed()

	rec := doRequest(c, http.MethodGet, "/api/v1/analytics?time_frame=year", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp analyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 6, resp.TotalRecords)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 1, resp.TotalPages)

	counts := map[string]int{}
	for _, b := range resp.PlatformDistribution {
		counts[b.Key] = b.Count
	}
	assert.Equal(t, 2, counts["X"])
	assert.Equal(t, 1, counts["Facebook"])
	assert.Equal(t, 3, counts["YouTube"])

	require.NotEmpty(t, resp.PlatformRanking)
	assert.Equal(t, "YouTube", resp.PlatformRanking[0].Key)
}

func TestAnalyticsSurvivesFeedOutage(t *testing.T) {
	c := newTestController(t)
	httpmock.RegisterResponder(http.MethodGet, feedEndpoint,
		httpmock.NewStringResponder(http.StatusBadGateway, "down"))

	rec := doRequest(c, http.MethodGet, "/api/v1/analytics?time_frame=year", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.TotalRecords, "seed records still served when the feed is down")
}

func TestAnalyticsRejectsUnknownTimeFrame(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/analytics?time_frame=decade", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSVContainsFilteredRows(t *testing.T) {
	c := newTestController(t)
	registerEmptyFeed()

	rec := doRequest(c, http.MethodGet, "/api/v1/export/csv?time_frame=year", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	assert.Equal(t, "Date,Time,Platform,Media Format,Status,Confidence", lines[0])
	assert.Len(t, lines, 7, "header plus six seed records")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "detections.csv")
}

func TestExportCSVEmptyFrameIsHeaderOnly(t *testing.T) {
	c := newTestController(t)
	registerEmptyFeed()

	// All seed records predate the one-week cutoff at the fixed clock.
	rec := doRequest(c, http.MethodGet, "/api/v1/export/csv?time_frame=week", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Date,Time,Platform,Media Format,Status,Confidence\n", rec.Body.String())
}

func TestExportReportIsPrintableTable(t *testing.T) {
	c := newTestController(t)
	registerEmptyFeed()

	rec := doRequest(c, http.MethodGet, "/api/v1/export/report?time_frame=year", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Platform")
	assert.Contains(t, rec.Body.String(), "YouTube")
}

func TestHealthCheck(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
