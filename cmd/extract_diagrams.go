/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// extractDiagramsCmd represents the extractDiagrams command
var extractDiagramsCmd = &cobra.Command{
	Use:   "extract-diagrams [pdf]",
	Short: "Crop the printed figures out of a paper",
	Long: `Rasterizes the paper, detects figure regions on each page, crops
them into the diagram store and renders the numbered preview sheet the
mapping step reads.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		meta, err := app.pipeline.ExtractDiagrams(cmd.Context(), pdfPath)
		if err != nil {
			logrus.WithError(err).Fatal("diagram extraction failed")
		}
		if len(meta.Figures) == 0 {
			fmt.Println("no figures detected")
			return
		}
		fmt.Printf("%d figures extracted, preview at %s\n", len(meta.Figures), meta.Preview)
	},
}

func init() {
	rootCmd.AddCommand(extractDiagramsCmd)
}
