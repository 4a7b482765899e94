package api

import (
	"errors"
	"net/http"

	"github.com/JustJay7/tribunal-registry/internal/causelist"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"github.com/JustJay7/tribunal-registry/internal/registry"
	"github.com/gin-gonic/gin"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeStoreBusy        = "store_busy"
	CodeStoreUnavailable = "store_unavailable"
	CodeBatchTooLarge    = "batch_too_large"
	CodePDFDisabled      = "pdf_disabled"
	CodeInternal         = "internal"
)

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, importer.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	case errors.Is(err, importer.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, CodeBatchTooLarge
	case errors.Is(err, importer.ErrNotArray),
		errors.Is(err, database.ErrUnknownStore),
		errors.Is(err, registry.ErrInvalidCaseNo),
		errors.Is(err, registry.ErrInvalidDate),
		errors.Is(err, registry.ErrInvalidMonth),
		errors.Is(err, registry.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, registry.ErrCaseNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, registry.ErrCaseExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, causelist.ErrPDFDisabled):
		return http.StatusNotImplemented, CodePDFDisabled
	}

	switch database.ClassifyError(err) {
	case database.KindDuplicate, database.KindForeignKey, database.KindConstraint:
		return http.StatusConflict, CodeConflict
	case database.KindBusy:
		return http.StatusServiceUnavailable, CodeStoreBusy
	case database.KindUnavailable:
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	case database.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	}
	return http.StatusInternalServerError, CodeInternal
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}
