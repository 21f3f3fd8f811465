/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/database"
	"github.com/openpariksha/pariksha-be/reconcile"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/service"
	"github.com/openpariksha/pariksha-be/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pariksha-be",
	Short: "Question-paper processing backend",
	Long: `pariksha-be turns scanned CBSE Mathematics papers into structured
question cards. It crops the printed figures, asks a model for the
question text, the marks table and the diagram placement, reconciles
the three against each other and publishes the finalized cards over an
HTTP API.

Run "pariksha-be start" for the server, or "pariksha-be process" for a
one-shot pipeline run on a single paper.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/config.yaml)")
}

// initConfig resolves the config file every command loads on startup.
func initConfig() {
	if cfgFile == "" {
		cfgFile = "config/config.yaml"
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(cfgFile)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// app bundles the wired services a command works with.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	artifacts repository.ArtifactRepo
	pdf       *service.PDFService
	cards     *service.CardService
	index     *service.IndexService
	pipeline  *service.PipelineService
}

// buildApp wires the full service stack from the loaded config. The
// question-bank index and MongoDB are optional; with neither configured
// everything runs on the filesystem and process memory.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger()

	artifacts, err := repository.NewArtifactRepo(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(cfg.Storage.InboxDir); err != nil {
		return nil, fmt.Errorf("create inbox %s: %w", cfg.Storage.InboxDir, err)
	}

	pdf := service.NewPDFService(logger)
	layout := service.NewLayoutService(cfg.Layout, logger)
	engine, err := service.NewExtractionEngine(cfg.AI, cfg.Parsing, logger)
	if err != nil {
		return nil, err
	}

	cards := service.NewCardService(artifacts, reconcile.New(reconcile.Config{
		QuestionDelimiter: cfg.Parsing.QuestionDelimiter,
		ChoiceDelimiter:   cfg.Parsing.ChoiceDelimiter,
		ChoiceSynonyms:    cfg.Parsing.ChoiceSynonyms,
	}), cfg.Parsing, logger)

	var cardIndex database.CardIndex
	if cfg.Index.Enabled() {
		idx, err := database.NewWeaviateIndex(cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("connect question-bank index: %w", err)
		}
		cardIndex = idx
	}
	index := service.NewIndexService(cardIndex, artifacts, logger)

	var runs repository.RunRepository
	if cfg.Storage.MongoURI != "" {
		db, err := database.NewMongoDatabase(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		if runs, err = repository.NewMongoRunRepo(db); err != nil {
			return nil, err
		}
	} else {
		runs = repository.NewMemoryRunRepo()
	}

	pipeline := service.NewPipelineService(cfg.Pipeline, cfg.Storage.InboxDir,
		pdf, layout, engine, cards, index, artifacts, runs, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		artifacts: artifacts,
		pdf:       pdf,
		cards:     cards,
		index:     index,
		pipeline:  pipeline,
	}, nil
}

func mustBuildApp() *app {
	a, err := buildApp()
	if err != nil {
		logrus.WithError(err).Fatal("failed to wire services")
	}
	return a
}

// mustResolvePDF picks the paper a step command works on: the optional
// positional argument, or the newest PDF in the inbox.
func mustResolvePDF(a *app, args []string) string {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	path, err := a.pipeline.ResolvePDF(name)
	if err != nil {
		logrus.Fatal(err)
	}
	return path
}
