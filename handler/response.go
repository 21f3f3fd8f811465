package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openpariksha/pariksha-be/types"
)

func sendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, types.DataResponse{
		Status: "success",
		Data:   data,
	})
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, types.DataResponse{
		Status:  "error",
		Message: message,
	})
}
