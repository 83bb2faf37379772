// Package handlers maps the HTTP surface onto the domain services.  Handlers
// stay thin: bind, call, translate errors; the domain owns all rules.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/pkg/errors"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError translates an application error into its HTTP shape.  Internal
// details are masked; stable error codes are the client contract.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)

	resp := ErrorResponse{Code: string(code)}
	if appErr, ok := err.(*errors.AppError); ok {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	} else {
		resp.Message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		resp.Message = "internal server error"
		resp.Detail = ""
	}
	c.JSON(status, resp)
}

// respondValidation short-circuits malformed request bodies.
func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Code:    string(errors.ErrCodeValidation),
		Message: message,
	})
}

// queryInt parses an integer query parameter, falling back on def.
func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
