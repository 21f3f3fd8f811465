/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openpariksha/pariksha-be/utils"
)

// generateCardsCmd represents the generateCards command
var generateCardsCmd = &cobra.Command{
	Use:   "generate-cards [pdf]",
	Short: "Reconcile stored artifacts into question cards",
	Long: `Parses the stored question text, reconciles it with the diagram
and marks mappings and writes the finalized card set. When the
question-bank index is configured the cards are reindexed as well.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		pdfPath := mustResolvePDF(app, args)

		set, err := app.cards.GenerateCards(utils.Stem(pdfPath))
		if err != nil {
			logrus.WithError(err).Fatal("card generation failed")
		}
		fmt.Printf("%d cards for %s", len(set.Cards), set.Paper)
		if len(set.Discrepancies) > 0 {
			fmt.Printf(", %d discrepancies to review", len(set.Discrepancies))
		}
		fmt.Println()

		if app.index.Enabled() {
			if err := app.index.IndexPaper(cmd.Context(), set.Paper); err != nil {
				logrus.WithError(err).Warn("reindex after card generation failed")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCardsCmd)
}
