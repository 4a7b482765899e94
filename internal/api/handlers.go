package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/causelist"
	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"github.com/JustJay7/tribunal-registry/internal/registry"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/gin-gonic/gin"
)

var maxImportBody int64 = 32 << 20

// Handlers holds all HTTP handlers
type Handlers struct {
	stores    *database.Stores
	registry  *registry.Service
	cache     cache.Cache
	validator *importer.Validator
	renderer  *causelist.Renderer
	logger    *logger.Logger
	cfg       *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(stores *database.Stores, svc *registry.Service, cache cache.Cache, renderer *causelist.Renderer, logger *logger.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		stores:    stores,
		registry:  svc,
		cache:     cache,
		validator: importer.NewValidator(cfg.DefaultPlaceOfFiling, cfg.MaxImportBatch),
		renderer:  renderer,
		logger:    logger,
		cfg:       cfg,
	}
}

func storeParam(c *gin.Context) (database.StoreName, error) {
	return database.ParseStoreName(c.Query("store"))
}

// ImportCauselistData validates a JSON array of cause list rows and imports
// the valid ones into the requested store.
func (h *Handlers) ImportCauselistData(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBody))
	if err != nil {
		status, code := http.StatusBadRequest, CodeInvalidInput
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, code = http.StatusRequestEntityTooLarge, CodeBatchTooLarge
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   "Failed to read request body: " + err.Error(),
			"code":    code,
		})
		return
	}

	records, validationErrs, err := h.validator.ValidatePayload(body)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    code,
			"errors":  validationErrs,
		})
		return
	}

	if len(records) == 0 {
		msg := "Empty payload received. No cases to import."
		if len(validationErrs) > 0 {
			msg = "No valid cases could be imported. All rows failed validation."
			h.logger.Warn("Import rejected, all rows invalid", "rows", len(validationErrs))
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   msg,
			"code":    CodeInvalidInput,
			"errors":  validationErrs,
		})
		return
	}

	db, err := h.stores.Get(store)
	if err != nil {
		h.respondError(c, err)
		return
	}

	policy, err := importer.ParseHearingPolicy(h.cfg.DuplicateHearingPolicy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	pipeline := importer.NewPipeline(db, h.logger,
		importer.WithHearingPolicy(policy),
		importer.WithStoreName(store),
	)

	summary, err := pipeline.ImportBatch(c.Request.Context(), records, importer.Skipped(len(validationErrs)))
	if summary != nil {
		h.registry.Invalidate(store, summary.CaseNos...)
	}
	if err != nil {
		status, code := statusFor(err)
		h.logger.Error("Import aborted", "store", store, "error", err)
		c.JSON(status, gin.H{
			"success":       false,
			"error":         err.Error(),
			"code":          code,
			"importedCount": summary.Imported,
			"skippedCount":  len(validationErrs),
			"skippedErrors": validationErrs,
			"batchId":       summary.BatchID,
		})
		return
	}

	h.logger.Info("Import completed",
		"store", store,
		"imported", summary.Imported,
		"skipped", len(validationErrs),
		"failed", len(summary.Failed),
	)

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"message":       fmt.Sprintf("Import process completed. Successfully imported %d cases.", summary.Imported),
		"importedCount": summary.Imported,
		"skippedCount":  len(validationErrs),
		"skippedErrors": validationErrs,
		"failedCount":   len(summary.Failed),
		"failures":      summary.Failed,
		"batchId":       summary.BatchID,
	})
}

// CasesByHearingDate lists the cases heard on ?hearingDate=YYYY-MM-DD.
func (h *Handlers) CasesByHearingDate(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.registry.CasesByHearingDate(c.Request.Context(), store, c.Query("hearingDate"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
	})
}

// CaseByNumber returns one case and its hearings. The case number contains
// slashes, so the route uses a catch-all parameter.
func (h *Handlers) CaseByNumber(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	caseNo := strings.TrimPrefix(c.Param("caseNo"), "/")
	detail, err := h.registry.CaseByNumber(c.Request.Context(), store, caseNo)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    detail,
	})
}

// ListCases returns a page of cases
func (h *Handlers) ListCases(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var q registry.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", registry.ErrInvalidInput, err))
		return
	}

	res, err := h.registry.ListCases(c.Request.Context(), store, q)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    res.Cases,
		"pagination": gin.H{
			"page":  res.Page,
			"limit": res.Limit,
			"total": res.Total,
		},
	})
}

// CreateCase adds a manually entered case to the main store.
func (h *Handlers) CreateCase(c *gin.Context) {
	var in registry.CaseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", registry.ErrInvalidInput, err))
		return
	}

	created, err := h.registry.CreateCase(c.Request.Context(), database.StoreMain, in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Case added",
		"case_no": created.CaseNo,
		"data":    created,
	})
}

// Dashboard returns the monthly report for ?month=YYYY-MM.
func (h *Handlers) Dashboard(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	d, err := h.registry.Dashboard(c.Request.Context(), store, c.Query("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    d,
	})
}

// PromoteStaged copies staged cases into the main store.
func (h *Handlers) PromoteStaged(c *gin.Context) {
	var req struct {
		CaseNos []string `json:"caseNos"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, fmt.Errorf("%w: %v", registry.ErrInvalidInput, err))
		return
	}

	summary, err := h.registry.Promote(c.Request.Context(), req.CaseNos)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// CauseList exports the cause list of ?date= as json, xlsx or pdf.
func (h *Handlers) CauseList(c *gin.Context) {
	store, err := storeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	date := c.Query("date")
	list, err := causelist.Build(c.Request.Context(), h.registry, store, date, h.cfg.RegistryName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := "causelist-" + date
	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    list,
		})
	case "xlsx":
		buf, err := causelist.WriteExcel(list)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	case "pdf":
		pdf, err := h.renderer.RenderPDF(c.Request.Context(), list)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, filename))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unsupported format, expected json, xlsx or pdf",
			"code":    CodeInvalidInput,
		})
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	stagingHealthy := database.Ping(ctx, h.stores.Staging) == nil
	mainHealthy := database.Ping(ctx, h.stores.Main) == nil

	status, code := "healthy", http.StatusOK
	if !stagingHealthy || !mainHealthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"stores": gin.H{
			"staging": stagingHealthy,
			"main":    mainHealthy,
		},
		"cache": h.cache.Stats(),
		"time":  time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	stats := h.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
