package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/cohort"
	"github.com/demandcast/backend/internal/export"
)

func newCohortsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "cohorts <records-file>",
		Short: "Compute quarterly customer activity for a records file and write the workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCohortsFile(args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <input>_activity.xlsx)")
	return cmd
}

func runCohortsFile(path, out string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	parsed, err := parseRecordsFile(path)
	if err != nil {
		return err
	}
	quarters, err := cohort.Analyze(parsed.Records)
	if err != nil {
		return err
	}

	wb, err := export.WriteActivityWorkbook(quarters)
	if err != nil {
		return err
	}
	defer wb.Close()

	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + "_activity.xlsx"
	}
	if err := wb.SaveAs(out); err != nil {
		return err
	}

	logger.Info().
		Str("out", out).
		Int("quarters", len(quarters)).
		Msg("activity workbook written")
	return nil
}
