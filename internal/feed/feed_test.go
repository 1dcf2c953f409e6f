package feed

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
	"github.com/deeptracer/deeptracer-go/internal/httpclient"
)

const testFeedEndpoint = "http://feed.local/api/predictions"

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()

	hc := httpclient.New(&httpclient.Config{DefaultTimeout: 5 * time.Second})
	httpmock.ActivateNonDefault(hc.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	settings := &conf.FeedSettings{Endpoint: testFeedEndpoint, Timeout: 5}
	return NewFetcher(settings, WithHTTPClient(hc))
}

func TestFetchParsesRecords(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder(http.MethodGet, testFeedEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `[
			{"id":1,"date":"2024-11-01","time":"09:30:00","platform":"Instagram","status":"fake","confidence":0.93,"media_format":"image"},
			{"id":2,"date":"2024-11-02","time":"10:00:00","platform":"X","status":"Real","confidence":0.21,"media_format":"Video"}
		]`))

	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Instagram", records[0].Platform)
	assert.Equal(t, detection.StatusFake, records[0].Status)
	assert.Equal(t, detection.StatusReal, records[1].Status, "status is normalized to lower case")
	assert.Equal(t, detection.FormatVideo, records[1].MediaFormat)
}

func TestFetchDropsMalformedRecords(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder(http.MethodGet, testFeedEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `[
			{"id":1,"date":"2024-11-01","time":"09:30:00","platform":"X","status":"fake","confidence":0.9,"media_format":"image"},
			{"id":2,"date":"not-a-date","time":"10:00:00","platform":"X","status":"fake","confidence":0.9,"media_format":"image"},
			{"id":3,"date":"2024-11-03","time":"11:00:00","platform":"X","status":"maybe","confidence":0.9,"media_format":"image"},
			{"id":4,"date":"2024-11-04","time":"12:00:00","platform":"X","status":"real","confidence":1.5,"media_format":"image"}
		]`))

	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1, "only the well-formed record survives")
	assert.Equal(t, uint(1), records[0].ID)
}

func TestFetchNonSuccessStatusIsNetworkError(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder(http.MethodGet, testFeedEndpoint,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestFetchUndecodableBodyIsParsingError(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder(http.MethodGet, testFeedEndpoint,
		httpmock.NewStringResponder(http.StatusOK, "<html>oops</html>"))

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFeedParsing))
}

func TestMergeDeduplicatesByDateTimePlatform(t *testing.T) {
	f := newTestFetcher(t)

	fetched := []detection.DetectionRecord{
		{Date: "2024-10-01", Time: "12:00:00", Platform: "X", MediaFormat: "image", Status: "real", Confidence: 0.99},
		{Date: "2024-11-01", Time: "08:00:00", Platform: "Facebook", MediaFormat: "video", Status: "fake", Confidence: 0.77},
	}
	seed := SeedRecords()

	merged := f.Merge(fetched, seed)
	require.Len(t, merged, len(seed)+1, "the colliding seed record is dropped")

	// The fetched record shadows the seed record sharing its key.
	assert.Equal(t, "real", merged[0].Status)
	assert.InDelta(t, 0.99, merged[0].Confidence, 1e-9)
}

func TestMergeCaseInsensitivePlatformKey(t *testing.T) {
	f := newTestFetcher(t)

	fetched := []detection.DetectionRecord{
		{Date: "2024-10-01", Time: "12:00:00", Platform: "x", MediaFormat: "image", Status: "real", Confidence: 0.5},
	}
	merged := f.Merge(fetched, SeedRecords())
	assert.Len(t, merged, len(SeedRecords()), "platform comparison ignores case")
}

func TestSeedRecordsAreValid(t *testing.T) {
	for _, record := range SeedRecords() {
		require.NoError(t, record.Validate())
		_, err := record.Timestamp()
		require.NoError(t, err)
	}
}
