package api

import (
	"github.com/gin-gonic/gin"

	"justmatcha-backend/internal/apperr"
)

var errRouteNotFound = apperr.NotFound("Route not found")

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

// fail writes err as an error envelope. Internal causes are logged and never
// reach the client.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), envelope{
		Message: apperr.Message(err),
		Error:   kind.String(),
	})
}

// bind decodes the JSON body into dst.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Invalid("invalid request body"))
		return false
	}
	return true
}
