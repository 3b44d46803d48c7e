// Package httpkit holds the gin plumbing shared by shell modules: response
// helpers and middleware.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventory_reports/platform/apperr"
)

// ErrorResponse is the body of every failed shell API call. Kind carries the
// apperr taxonomy name so the display can tell a report service outage from
// a bad request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// OK answers 200 with payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Created answers 201 with payload.
func Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, payload)
}

// NoContent answers 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest answers 400 for input that never reached a service, such as an
// unparsable body or path parameter.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: message,
		Kind:  apperr.KindValidation.String(),
	})
}

// HandleError writes err and reports whether there was one. An *apperr.Error
// anywhere in the chain picks the status; anything else is a 500. The error
// is attached to the gin context so RequestLogger records server failures.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	_ = c.Error(err)

	status := http.StatusInternalServerError
	body := ErrorResponse{Error: err.Error(), Kind: apperr.KindInternal.String()}
	if e, ok := apperr.As(err); ok {
		status = e.HTTPStatus()
		body = ErrorResponse{Error: e.Message, Kind: e.Kind.String(), Details: e.Details}
	}
	c.AbortWithStatusJSON(status, body)
	return true
}
