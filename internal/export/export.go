// Package export serializes a filtered detection log to CSV and to a
// printable fixed-width table. Both are pure serializers: the caller decides
// where the payload goes.
package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// Column order is fixed across both formats.
const csvHeader = "Date,Time,Platform,Media Format,Status,Confidence\n"

// WriteCSV writes the records as CSV with a header row. Confidence is
// rendered with exactly 5 decimal places. Empty input produces the header
// row only.
func WriteCSV(w io.Writer, records []detection.DetectionRecord) error {
	if _, err := io.WriteString(w, csvHeader); err != nil {
		return writeError("csv-header", err)
	}

	for i := range records {
		r := &records[i]
		line := fmt.Sprintf("%s,%s,%s,%s,%s,%.5f\n",
			csvField(r.Date), csvField(r.Time), csvField(r.Platform),
			csvField(r.MediaFormat), csvField(r.Status), r.Confidence)
		if _, err := io.WriteString(w, line); err != nil {
			return writeError("csv-row", err)
		}
	}

	return nil
}

// WriteTable writes the records as a fixed-width table suitable for a
// printable report. Empty input produces the header only.
func WriteTable(w io.Writer, records []detection.DetectionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "Date\tTime\tPlatform\tMedia Format\tStatus\tConfidence"); err != nil {
		return writeError("table-header", err)
	}

	for i := range records {
		r := &records[i]
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.5f\n",
			r.Date, r.Time, r.Platform, r.MediaFormat, r.Status, r.Confidence); err != nil {
			return writeError("table-row", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return writeError("table-flush", err)
	}
	return nil
}

// ToCSV returns the CSV document as a string.
func ToCSV(records []detection.DetectionRecord) (string, error) {
	var sb strings.Builder
	if err := WriteCSV(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ToTable returns the printable table as a string.
func ToTable(records []detection.DetectionRecord) (string, error) {
	var sb strings.Builder
	if err := WriteTable(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// csvField quotes a value when it contains a comma, quote or newline.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func writeError(stage string, err error) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryExport).
		Context("stage", stage).
		Build()
}
