// Package middleware holds the gin middleware chain shared by every HTTP route.
package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/profile-service/internal/errors"
)

// abort stops the chain and writes err as the standard error body.
func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), apperrors.Response{
		Error:   err.Code,
		Message: err.UserMessage,
	})
}
