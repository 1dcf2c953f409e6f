// Package export dumps the filtered detection log to CSV or a printable
// table from the command line.
package export

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deeptracer/deeptracer-go/internal/analytics"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/datastore"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
	"github.com/deeptracer/deeptracer-go/internal/export"
	"github.com/deeptracer/deeptracer-go/internal/feed"
	"github.com/deeptracer/deeptracer-go/internal/logging"
)

// Command returns the export subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		format      string
		timeFrame   string
		platform    string
		mediaFormat string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered detection log",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := detection.FilterCriteria{
				TimeFrame:   detection.TimeFrame(timeFrame),
				Platform:    platform,
				MediaFormat: mediaFormat,
			}
			return run(settings, criteria, format, output)
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or table")
	cmd.Flags().StringVar(&timeFrame, "time-frame", "week", "Time frame: week, month or year")
	cmd.Flags().StringVar(&platform, "platform", "", "Filter by platform (case-insensitive)")
	cmd.Flags().StringVar(&mediaFormat, "media-format", "", "Filter by media format (case-insensitive)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func run(settings *conf.Settings, criteria detection.FilterCriteria, format, output string) error {
	logger := logging.ForService("export")

	if err := criteria.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(settings.Feed.Timeout)*time.Second)
	defer cancel()

	log, err := buildRecordLog(ctx, settings, logger)
	if err != nil {
		return err
	}

	engine := analytics.NewEngine()
	result := engine.Process(log, criteria, 1, len(log)+1)

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Newf("creating output file: %v", err).
				Component("export").
				Category(errors.CategoryFileIO).
				Context("path", output).
				Build()
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch format {
	case "csv":
		return export.WriteCSV(out, result.Filtered)
	case "table":
		return export.WriteTable(out, result.Filtered)
	default:
		return errors.Newf("unknown export format %q", format).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}
}

// buildRecordLog mirrors the server's log assembly: feed plus stored
// submissions, merged with the seed set. A feed outage degrades to local
// data.
func buildRecordLog(ctx context.Context, settings *conf.Settings, logger *slog.Logger) ([]detection.DetectionRecord, error) {
	fetcher := feed.NewFetcher(&settings.Feed)

	var live []detection.DetectionRecord
	fetched, err := fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn("feed unavailable, exporting local records only", "error", err)
	} else {
		live = fetched
	}

	if store := datastore.New(settings); store != nil {
		if err := store.Open(); err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()

		stored, err := store.GetAll()
		if err != nil {
			return nil, err
		}
		live = append(live, stored...)
	}

	return fetcher.Merge(live, feed.SeedRecords()), nil
}
