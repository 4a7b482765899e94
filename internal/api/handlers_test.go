package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/causelist"
	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/registry"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *database.Stores) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores, err := database.OpenStores(":memory:", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	cfg := &config.Config{
		CacheSize:              100,
		CacheTTL:               time.Minute,
		RegistryName:           "ITAT Nagpur",
		DefaultPlaceOfFiling:   "NAG",
		DuplicateHearingPolicy: config.HearingPolicyReject,
		MaxImportBatch:         3,
	}

	log := logger.NewNop()
	testCache := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)
	svc := registry.NewService(stores, testCache, log)

	router := gin.New()
	SetupRoutes(router, stores, svc, testCache, causelist.NewRenderer(cfg, log), log, cfg)
	return router, stores
}

func row(serial int, name, hearing string) map[string]interface{} {
	return map[string]interface{}{
		"case_type":       "ITA",
		"s_no":            serial,
		"year_of_filing":  2023,
		"filed_by":        "A",
		"bench_type":      "DB",
		"assessee_name":   name,
		"assessment_year": "2022-23",
		"disputed_amount": 50000,
		"argued_by":       "CIT(DR)",
		"hearing_date":    hearing,
	}
}

func do(t *testing.T, router *gin.Engine, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, response := do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, map[string]interface{}{"staging": true, "main": true}, response["stores"])
}

func TestHealthCheckDegraded(t *testing.T) {
	router, stores := setupTestRouter(t)
	sqlDB, err := stores.Main.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w, response := do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", response["status"])
}

func TestImportCauselistData(t *testing.T) {
	router, stores := setupTestRouter(t)

	invalid := row(3, "Broken", "2023-03-10")
	delete(invalid, "argued_by")

	w, response := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(1, "Acme Corp", "2023-03-10"),
		invalid,
		row(2, "Beta Ltd", "10-03-2023"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(2), response["importedCount"])
	assert.Equal(t, float64(1), response["skippedCount"])
	assert.Equal(t, float64(0), response["failedCount"])
	assert.NotEmpty(t, response["batchId"])

	skipped := response["skippedErrors"].([]interface{})
	require.Len(t, skipped, 1)
	assert.Equal(t, float64(1), skipped[0].(map[string]interface{})["index"])

	var count int64
	require.NoError(t, stores.Staging.Model(&database.Case{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	require.NoError(t, stores.Main.Model(&database.Case{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestImportIntoMainStore(t *testing.T) {
	router, stores := setupTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/import/importCauselistData?store=main", []interface{}{
		row(1, "Acme Corp", "2023-03-10"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var count int64
	require.NoError(t, stores.Main.Model(&database.Case{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImportRejections(t *testing.T) {
	router, _ := setupTestRouter(t)
	invalid := row(1, "", "2023-03-10")

	tests := []struct {
		name       string
		target     string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{
			name:       "Not an array",
			target:     "/api/import/importCauselistData",
			body:       `{"case_type":"ITA"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Empty payload",
			target:     "/api/import/importCauselistData",
			body:       `[]`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Empty payload received. No cases to import.",
		},
		{
			name:       "All rows invalid",
			target:     "/api/import/importCauselistData",
			body:       []interface{}{invalid},
			wantStatus: http.StatusBadRequest,
			wantError:  "No valid cases could be imported. All rows failed validation.",
		},
		{
			name:       "Batch too large",
			target:     "/api/import/importCauselistData",
			body:       `[{},{},{},{}]`,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "Unknown store",
			target:     "/api/import/importCauselistData?store=archive",
			body:       `[]`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := do(t, router, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, false, response["success"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, response["error"])
			}
		})
	}
}

func TestImportStoreUnavailable(t *testing.T) {
	router, stores := setupTestRouter(t)
	sqlDB, err := stores.Staging.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w, response := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(1, "Acme Corp", "2023-03-10"),
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeStoreUnavailable, response["code"])
}

func TestLookups(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(108, "Acme Corp", "2023-03-10"),
		row(7, "Beta Ltd", "2023-03-10"),
		row(9, "Gamma", "2023-03-11"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("By hearing date", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/lookups/casesByHearingDate?hearingDate=2023-03-10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := response["data"].([]interface{})
		require.Len(t, data, 2)
		assert.Equal(t, "ITA 7/NAG/2023", data[0].(map[string]interface{})["case_no"])
	})

	t.Run("Invalid hearing date", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/lookups/casesByHearingDate?hearingDate=10/03/2023", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeInvalidInput, response["code"])
	})

	t.Run("By case number", func(t *testing.T) {
		target := "/api/lookups/casesByCaseNo/" + url.PathEscape("ITA 108/NAG/2023")
		w, response := do(t, router, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "ITA 108/NAG/2023", data["case_no"])
		assert.Equal(t, "Acme Corp", data["appellant_name"])
	})

	t.Run("Unknown case number", func(t *testing.T) {
		target := "/api/lookups/casesByCaseNo/" + url.PathEscape("ITA 999/NAG/2023")
		w, response := do(t, router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, CodeNotFound, response["code"])
	})

	t.Run("Malformed case number", func(t *testing.T) {
		w, _ := do(t, router, http.MethodGet, "/api/lookups/casesByCaseNo/nonsense", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCasesEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	input := map[string]interface{}{
		"case_type":       "ITA",
		"s_no":            12,
		"year_of_filing":  2022,
		"filed_by":        "DEPARTMENT",
		"bench_type":      "SMC",
		"appellant_name":  "ITO Ward 1",
		"respondant_name": "Acme Corp",
		"assessment_year": "2019-20",
		"disputed_amount": 1200,
		"argued_by":       "Sr. DR",
		"date_of_filing":  "2022-06-01",
		"pan":             "ABCDE1234F",
	}

	w, response := do(t, router, http.MethodPost, "/api/cases", input)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ITA 12/NAG/2022", response["case_no"])

	w, response = do(t, router, http.MethodPost, "/api/cases", input)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, response["code"])

	w, _ = do(t, router, http.MethodPost, "/api/cases", map[string]interface{}{"case_type": "XYZ"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, response = do(t, router, http.MethodGet, "/api/cases?store=main&page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["data"], 1)
	pagination := response["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["total"])
	assert.Equal(t, float64(5), pagination["limit"])
}

func TestDashboardEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(1, "Acme Corp", "2023-03-10"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := do(t, router, http.MethodGet, "/api/reports/dashboard?month=2023-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "2023-03", data["selected_month"])
	card := data["report_card"].(map[string]interface{})
	assert.Equal(t, float64(1), card["total_cause_list"])

	w, _ = do(t, router, http.MethodGet, "/api/reports/dashboard?month=March", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromoteEndpoint(t *testing.T) {
	router, stores := setupTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(1, "Acme Corp", "2023-03-10"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := do(t, router, http.MethodPost, "/api/staging/promote", map[string]interface{}{
		"caseNos": []string{"ITA 1/NAG/2023"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["promoted"])

	var count int64
	require.NoError(t, stores.Main.Model(&database.Hearing{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// No body promotes flagged cases, of which there are none.
	w, response = do(t, router, http.MethodPost, "/api/staging/promote", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = response["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["promoted"])
}

func TestCauseListEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
		row(2, "Beta Ltd", "2023-03-10"),
		row(1, "Acme Corp", "2023-03-10"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("JSON", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/causelist?date=2023-03-10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		entries := response["data"].(map[string]interface{})["entries"].([]interface{})
		require.Len(t, entries, 2)
		assert.Equal(t, "ITA 1/NAG/2023", entries[0].(map[string]interface{})["case_no"])
	})

	t.Run("Excel", func(t *testing.T) {
		w, _ := do(t, router, http.MethodGet, "/api/causelist?date=2023-03-10&format=xlsx", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "causelist-2023-03-10.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{"2023-03-10"}, f.GetSheetList())
	})

	t.Run("PDF disabled", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/causelist?date=2023-03-10&format=pdf", nil)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, CodePDFDisabled, response["code"])
	})

	t.Run("Unknown format", func(t *testing.T) {
		w, _ := do(t, router, http.MethodGet, "/api/causelist?date=2023-03-10&format=doc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCacheStats(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, response := do(t, router, http.MethodGet, "/api/cache/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
	assert.Contains(t, response, "stats")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestImportBodyReadErrors(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("Body over the limit", func(t *testing.T) {
		orig := maxImportBody
		maxImportBody = 16
		t.Cleanup(func() { maxImportBody = orig })

		w, response := do(t, router, http.MethodPost, "/api/import/importCauselistData", []interface{}{
			row(1, "Acme Corp", "2023-03-10"),
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, CodeBatchTooLarge, response["code"])
	})

	t.Run("Client disconnect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/import/importCauselistData", failingReader{})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, CodeInvalidInput, response["code"])
	})
}

func TestImportNullBody(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, response := do(t, router, http.MethodPost, "/api/import/importCauselistData", "null")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := response["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, float64(-1), errs[0].(map[string]interface{})["index"])
}
