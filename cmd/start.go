/*
Copyright © 2025 openpariksha
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/openpariksha/pariksha-be/handler"
	"github.com/openpariksha/pariksha-be/middleware"
	"github.com/openpariksha/pariksha-be/service"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the paper-processing server",
	Long: `Starts the HTTP API, the progress websocket and the pipeline
workers. Papers are uploaded to the inbox over the API and processed
asynchronously; step transitions stream to /ws/progress.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustBuildApp()
		cfg, logger := app.cfg, app.logger

		ws := service.NewWebSocketService(logger)
		app.pipeline.OnProgress(ws.Broadcast)

		corsHandler := handler.NewCorsHandler()
		uploadHandler := handler.NewUploadHandler(cfg.Storage.InboxDir, app.pdf, logger)
		pipelineHandler := handler.NewPipelineHandler(app.pipeline, logger)
		cardHandler := handler.NewCardHandler(app.cards, app.index, logger)
		statusHandler := handler.NewStatusHandler(cfg.AI.Provider, cfg.Storage.DataDir, app.pipeline)
		diagramHandler := handler.NewDiagramHandler(app.artifacts.DiagramImagesDir(), app.artifacts.DiagramPreviewsDir())

		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		router.GET("/health", statusHandler.HandleHealth)
		router.GET("/status", statusHandler.HandleStatus)
		router.GET("/ws/progress", func(c *gin.Context) {
			ws.HandleProgress(c.Writer, c.Request)
		})

		apiV1 := router.Group("/api/v1")
		apiV1.Use(middleware.BearerAuth(cfg.Server.AuthToken))
		{
			apiV1.POST("/upload", uploadHandler.HandleUpload)
			apiV1.POST("/extract-diagrams", pipelineHandler.HandleExtractDiagrams)
			apiV1.POST("/map-diagrams", pipelineHandler.HandleMapDiagrams)
			apiV1.POST("/extract-marks", pipelineHandler.HandleExtractMarks)
			apiV1.POST("/extract-questions", pipelineHandler.HandleExtractQuestions)
			apiV1.POST("/generate-cards", cardHandler.HandleGenerateCards)
			apiV1.POST("/process-pipeline", pipelineHandler.HandleProcessPipeline)
			apiV1.GET("/runs", pipelineHandler.HandleListRuns)
			apiV1.GET("/runs/:id", pipelineHandler.HandleGetRun)
			apiV1.GET("/cards", cardHandler.HandleListPapers)
			apiV1.GET("/cards/:paper", cardHandler.HandleGetCards)
			apiV1.GET("/cards/:paper/summary", cardHandler.HandleGetSummary)
			apiV1.GET("/search", cardHandler.HandleSearch)
			apiV1.GET("/diagrams/:file", diagramHandler.HandleServeDiagram)
			apiV1.GET("/previews/:file", diagramHandler.HandleServePreview)
		}

		srv := &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			logger.WithField("port", cfg.Server.Port).Info("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Fatal("server error")
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		ws.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server shutdown")
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
