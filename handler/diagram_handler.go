package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// DiagramHandler serves the figure crops and preview sheets referenced by
// generated cards.
type DiagramHandler struct {
	imagesDir   string
	previewsDir string
}

func NewDiagramHandler(imagesDir, previewsDir string) *DiagramHandler {
	return &DiagramHandler{
		imagesDir:   imagesDir,
		previewsDir: previewsDir,
	}
}

func (h *DiagramHandler) HandleServeDiagram(c *gin.Context) {
	h.serveFrom(c, h.imagesDir)
}

func (h *DiagramHandler) HandleServePreview(c *gin.Context) {
	h.serveFrom(c, h.previewsDir)
}

// serveFrom flattens the requested name to its base so requests cannot
// escape the artifact directory.
func (h *DiagramHandler) serveFrom(c *gin.Context, dir string) {
	name := filepath.Base(c.Param("file"))
	if filepath.Ext(name) != ".png" {
		sendError(c, http.StatusBadRequest, "Only PNG files are served")
		return
	}

	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		sendError(c, http.StatusNotFound, "File not found")
		return
	}

	c.Header("Content-Type", "image/png")
	c.File(path)
}
