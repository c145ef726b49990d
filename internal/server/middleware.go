package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requireKey accepts "Authorization: Bearer <key>" or the bare key
func requireKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "authentication_error", "invalid api key")
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, openai.ErrorResponse{
		Error: &openai.APIError{Message: message, Type: errType},
	})
}
