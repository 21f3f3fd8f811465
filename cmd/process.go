/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [pdf]",
	Short: "Run the full pipeline on one paper",
	Long: `Runs all five pipeline steps on the given PDF and prints the
per-step outcome. The argument may be a path or the name of a paper in
the inbox; with no argument the newest inbox PDF is processed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		// A paper outside the inbox is imported first, so re-runs and the
		// newest-PDF default can find it.
		if filepath.Dir(pdfPath) != filepath.Clean(app.cfg.Storage.InboxDir) {
			imported, err := utils.CopyFileWithTimestamp(pdfPath, app.cfg.Storage.InboxDir)
			if err != nil {
				logrus.WithError(err).Fatal("failed to import paper into inbox")
			}
			pdfPath = imported
		}

		run, err := app.pipeline.Run(cmd.Context(), pdfPath)
		if err != nil {
			logrus.WithError(err).Fatal("pipeline run failed")
		}
		printRun(run)
		if run.Status == types.RUN_STATUS_FAILED {
			os.Exit(1)
		}
	},
}

func printRun(run *types.PipelineRun) {
	fmt.Printf("run %s  paper %s  status %s\n", run.ID, run.Paper, run.Status)
	for _, step := range run.Steps {
		line := fmt.Sprintf("  %-20s %s", step.Name, step.Status)
		if step.Error != "" {
			line += "  (" + step.Error + ")"
		}
		fmt.Println(line)
	}
	if run.Summary != nil {
		fmt.Printf("  %d cards, %d with diagrams, %d with internal choice\n",
			run.Summary.TotalQuestions,
			run.Summary.QuestionsWithDiagrams,
			run.Summary.QuestionsWithInternalChoice)
	}
}

func init() {
	rootCmd.AddCommand(processCmd)
}
