/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// extractQuestionsCmd represents the extractQuestions command
var extractQuestionsCmd = &cobra.Command{
	Use:   "extract-questions [pdf]",
	Short: "Extract the delimited question text",
	Long: `Sends the paper to the model and stores the raw question stream,
one question per delimited segment, for card generation to parse.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		text, err := app.pipeline.ExtractQuestions(cmd.Context(), pdfPath)
		if err != nil {
			logrus.WithError(err).Fatal("question extraction failed")
		}
		fmt.Printf("%d bytes of question text extracted\n", len(text))
	},
}

func init() {
	rootCmd.AddCommand(extractQuestionsCmd)
}
