/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// mapDiagramsCmd represents the mapDiagrams command
var mapDiagramsCmd = &cobra.Command{
	Use:   "map-diagrams [pdf]",
	Short: "Assign extracted figures to their questions",
	Long: `Sends the paper and the figure preview sheet to the model and
stores which question each figure belongs to. Run extract-diagrams
first, or pass --preview to reuse an existing sheet.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		preview, _ := cmd.Flags().GetString("preview")
		previewPath, err := app.pipeline.PreviewPath(preview)
		if err != nil {
			logrus.Fatal(err)
		}
		mapping, err := app.pipeline.MapDiagrams(cmd.Context(), pdfPath, previewPath)
		if err != nil {
			logrus.WithError(err).Fatal("diagram mapping failed")
		}
		fmt.Printf("%d figures mapped\n", len(mapping))
	},
}

func init() {
	rootCmd.AddCommand(mapDiagramsCmd)

	mapDiagramsCmd.Flags().StringP("preview", "p", "", "preview sheet to read figures from")
}
