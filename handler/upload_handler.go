package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/service"
	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
)

// Scanned papers run large; 50MB covers a 300dpi scan of a full set.
const maxUploadSize = 50 << 20

type UploadHandler struct {
	inboxDir string
	pdf      *service.PDFService
	logger   *logrus.Logger
}

func NewUploadHandler(inboxDir string, pdf *service.PDFService, logger *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		inboxDir: inboxDir,
		pdf:      pdf,
		logger:   logger,
	}
}

// HandleUpload stores one exam PDF in the inbox under a timestamped name.
// The stored path is what process-pipeline and the per-step endpoints
// resolve against.
func (h *UploadHandler) HandleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid file")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		sendError(c, http.StatusBadRequest, "Only PDF uploads are supported")
		return
	}
	if header.Size > maxUploadSize {
		sendError(c, http.StatusBadRequest, "File too large")
		return
	}

	destPath := filepath.Join(h.inboxDir, utils.TimestampedName(header.Filename))
	if err := c.SaveUploadedFile(header, destPath); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to store upload: "+err.Error())
		return
	}

	if err := h.pdf.Validate(destPath); err != nil {
		os.Remove(destPath)
		sendError(c, http.StatusBadRequest, "Uploaded file is not a readable PDF")
		return
	}
	pages, err := h.pdf.PageCount(destPath)
	if err != nil {
		h.logger.WithError(err).WithField("pdf", filepath.Base(destPath)).Warn("page count failed for upload")
	}

	h.logger.WithFields(logrus.Fields{
		"file":  filepath.Base(destPath),
		"pages": pages,
	}).Info("exam paper uploaded")

	sendSuccess(c, types.UploadResponse{
		OriginalName: header.Filename,
		StoredPath:   destPath,
		Pages:        pages,
	})
}
