// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lendproj/defreview/internal/document"
)

var flagReportFile string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review one extraction report and print the deficiency report as JSON",
	Long: `Reads an extraction report (multi-document or single-document format),
runs the full review pipeline, and writes the deficiency report to stdout.
Use -f - to read the report from stdin.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&flagReportFile, "file", "f", "-", "extraction report JSON file, or - for stdin")
}

func runReview(cmd *cobra.Command, _ []string) error {
	payload, err := readReport(flagReportFile)
	if err != nil {
		return err
	}
	set, err := document.Normalize(payload)
	if err != nil {
		return err
	}

	pipe, log, err := buildPipeline(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	report, err := pipe.Run(cmd.Context(), set)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func readReport(path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return raw, nil
}
