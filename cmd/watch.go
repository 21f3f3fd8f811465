/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// A fresh inbox file must keep the same size this long before a run
// starts. Scanner frontends write large PDFs in bursts.
const watchSettleDelay = 2 * time.Second

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process every PDF dropped into the inbox",
	Long: `Watches the inbox directory and runs the full pipeline on each PDF
that appears in it. Files still being written are left alone until
their size settles.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		logger := app.logger

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logrus.WithError(err).Fatal("failed to create watcher")
		}
		defer watcher.Close()

		if err := watcher.Add(app.cfg.Storage.InboxDir); err != nil {
			logrus.WithError(err).Fatal("failed to watch inbox")
		}
		logger.WithField("inbox", app.cfg.Storage.InboxDir).Info("watching for papers")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// A rename into the inbox arrives as Create for the new name.
				if !event.Op.Has(fsnotify.Create) {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
					continue
				}
				go processInboxFile(ctx, app, event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("watcher error")
			}
		}
	},
}

func processInboxFile(ctx context.Context, a *app, path string) {
	logger := a.logger.WithField("pdf", filepath.Base(path))
	if !waitForSettle(ctx, path) {
		logger.Warn("file never settled, skipping")
		return
	}
	logger.Info("new paper detected")

	run, err := a.pipeline.Run(ctx, path)
	if err != nil {
		logger.WithError(err).Error("pipeline run failed")
		return
	}
	logger.WithFields(logrus.Fields{
		"run":    run.ID,
		"status": run.Status,
	}).Info("pipeline run finished")
}

// waitForSettle polls until two consecutive size reads agree, so a PDF
// still being copied in is not processed half-written.
func waitForSettle(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(watchSettleDelay):
		}
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() > 0 && info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()
	}
	return false
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
