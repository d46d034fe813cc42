package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dagbench/pkg/report"
)

func newReportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "report [results-file]",
		Short: "Render a persisted RunReport as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.LoadReport(args[0])
			if err != nil {
				return fmt.Errorf("loading report: %w", err)
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()

			return report.RenderHTML(f, r)
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the HTML report (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
