package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openpariksha/pariksha-be/types"
)

// BearerAuth guards routes with the static API token from
// server.AUTH_TOKEN. An empty configured token disables the check, which
// is the expected setup on a closed intranet.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DataResponse{
				Status:  "error",
				Message: "Authorization header is required",
			})
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DataResponse{
				Status:  "error",
				Message: "Authorization header format must be Bearer {token}",
			})
			return
		}
		if parts[1] != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DataResponse{
				Status:  "error",
				Message: "Invalid token",
			})
			return
		}
		c.Next()
	}
}
