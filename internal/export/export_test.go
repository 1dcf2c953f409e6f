package export

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeptracer/deeptracer-go/internal/detection"
)

func sampleRecords() []detection.DetectionRecord {
	return []detection.DetectionRecord{
		{ID: 1, Date: "2024-10-01", Time: "12:00:00", Platform: "X", MediaFormat: "image", Status: "fake", Confidence: 0.85},
		{ID: 2, Date: "2024-10-02", Time: "15:30:00", Platform: "YouTube", MediaFormat: "video", Status: "real", Confidence: 0.1},
	}
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(sampleRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Time,Platform,Media Format,Status,Confidence", lines[0])
	assert.Equal(t, "2024-10-01,12:00:00,X,image,fake,0.85000", lines[1])
	assert.Equal(t, "2024-10-02,15:30:00,YouTube,video,real,0.10000", lines[2])
}

func TestToCSVEmptyInputIsHeaderOnly(t *testing.T) {
	out, err := ToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "Date,Time,Platform,Media Format,Status,Confidence\n", out)

	// Parsing the header-only document back yields zero data records.
	reader := csv.NewReader(strings.NewReader(out))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestToCSVQuotesCommasInFields(t *testing.T) {
	records := []detection.DetectionRecord{
		{Date: "2024-10-01", Time: "12:00:00", Platform: `News, "Daily"`, MediaFormat: "image", Status: "fake", Confidence: 0.5},
	}

	out, err := ToCSV(records)
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(out))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `News, "Daily"`, rows[1][2])
}

func TestToTable(t *testing.T) {
	out, err := ToTable(sampleRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Media Format")
	assert.Contains(t, lines[1], "0.85000")
	assert.Contains(t, lines[2], "YouTube")
}

func TestToTableEmptyInput(t *testing.T) {
	out, err := ToTable(nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Confidence")
}
