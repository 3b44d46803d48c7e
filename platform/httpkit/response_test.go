package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/platform/apperr"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body ErrorResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHandleError_UsesKindFromChain(t *testing.T) {
	err := fmt.Errorf("download: %w", apperr.New(apperr.KindReportGeneration, "report service returned 500").WithDetails(map[string]int{"status": 500}))

	rec, body := serve(t, func(c *gin.Context) {
		assert.True(t, HandleError(c, err))
		assert.Len(t, c.Errors, 1)
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "ReportGenerationFailed", body.Kind)
	assert.Equal(t, "report service returned 500", body.Error)
	assert.NotNil(t, body.Details)
}

func TestHandleError_PlainErrorIsInternal(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) { HandleError(c, errors.New("disk full")) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal", body.Kind)
	assert.Equal(t, "disk full", body.Error)
}

func TestHandleError_NilWritesNothing(t *testing.T) {
	rec, _ := serve(t, func(c *gin.Context) { assert.False(t, HandleError(c, nil)) })
	assert.Equal(t, 0, rec.Body.Len())
}

func TestBadRequestAndConflict(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) { BadRequest(c, "invalid item id") })
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", body.Kind)

	rec, body = serve(t, func(c *gin.Context) { HandleError(c, apperr.Conflict("a newer preview is already shown")) })
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", body.Kind)
}
