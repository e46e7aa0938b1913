package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/dataset"
	"github.com/demandcast/backend/internal/export"
	"github.com/demandcast/backend/internal/forecast"
)

func newForecastCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "forecast <records-file>",
		Short: "Forecast demand for every entity group in a records file and write the merged CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecastFile(cmd, args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <input>_forecast.csv)")
	return cmd
}

func runForecastFile(cmd *cobra.Command, path, out string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	parsed, err := parseRecordsFile(path)
	if err != nil {
		return err
	}
	scheme := forecast.SchemeFor(parsed.HasSales)
	logger.Info().
		Str("scheme", scheme.String()).
		Int("records", len(parsed.Records)).
		Msg("records loaded")

	var bar *progressbar.ProgressBar
	pipe := forecast.Pipeline{Engine: forecast.DefaultEngine(), Logger: logger}
	rows, stats, err := pipe.Run(cmd.Context(), parsed.Records, scheme, func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "forecasting")
		}
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + "_forecast.csv"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.WriteForecastCSV(f, scheme, rows); err != nil {
		return err
	}

	logger.Info().
		Str("out", out).
		Int("rows", len(rows)).
		Int("groups_total", stats.GroupsTotal).
		Int("groups_forecasted", stats.GroupsForecasted).
		Int("groups_skipped", stats.GroupsSkipped).
		Msg("forecast written")
	return nil
}

func parseRecordsFile(path string) (*dataset.Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, rowErrs, err := dataset.Parse(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		return nil, fmt.Errorf("%d invalid rows, first: %s", len(rowErrs), rowErrs[0])
	}
	return parsed, nil
}
