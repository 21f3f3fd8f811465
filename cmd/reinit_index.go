/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openpariksha/pariksha-be/database"
)

// reinitIndexCmd represents the reinitIndex command
var reinitIndexCmd = &cobra.Command{
	Use:   "reinit-index",
	Short: "Drop and recreate the question-bank index",
	Long: `Drops the QuestionCard class and recreates it empty. Every indexed
card is lost; run generate-cards per paper afterwards to refill it.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}
		if !cfg.Index.Enabled() {
			logrus.Fatal("no index host configured")
		}

		idx, err := database.NewWeaviateIndex(cfg.Index)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to index")
		}
		if err := idx.ReInit(); err != nil {
			logrus.WithError(err).Fatal("failed to reinitialize index")
		}
		fmt.Println("question-bank index recreated")
	},
}

func init() {
	rootCmd.AddCommand(reinitIndexCmd)
}
