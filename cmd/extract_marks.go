/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// extractMarksCmd represents the extractMarks command
var extractMarksCmd = &cobra.Command{
	Use:   "extract-marks [pdf]",
	Short: "Classify every question's type and marks",
	Long: `Sends the paper to the model and stores the per-question type and
marks mapping used during card generation.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		mapping, err := app.pipeline.MapMarks(cmd.Context(), pdfPath)
		if err != nil {
			logrus.WithError(err).Fatal("marks mapping failed")
		}
		fmt.Printf("%d questions classified\n", len(mapping))
	},
}

func init() {
	rootCmd.AddCommand(extractMarksCmd)
}
