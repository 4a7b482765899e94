package api

import (
	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/causelist"
	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/registry"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, stores *database.Stores, svc *registry.Service, cache cache.Cache, renderer *causelist.Renderer, logger *logger.Logger, cfg *config.Config) {
	h := NewHandlers(stores, svc, cache, renderer, logger, cfg)

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)

		// Cause list import
		api.POST("/import/importCauselistData", h.ImportCauselistData)

		// Lookups
		api.GET("/lookups/casesByHearingDate", h.CasesByHearingDate)
		api.GET("/lookups/casesByCaseNo/*caseNo", h.CaseByNumber)

		// Cases
		api.GET("/cases", h.ListCases)
		api.POST("/cases", h.CreateCase)

		api.GET("/reports/dashboard", h.Dashboard)
		api.POST("/staging/promote", h.PromoteStaged)
		api.GET("/causelist", h.CauseList)
	}
}
