package routes

import (
	"net/http"
	"time"

	handler "attendance-import-backend/internal/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the engine with logging, recovery and CORS, and
// registers every route.
func NewRouter(allowedOrigins []string, h *handler.ImportHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *handler.ImportHandler) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", handler.Health)

	imports := api.Group("/attendance-import")
	{
		imports.POST("/create-batch", h.CreateBatch)
		imports.POST("/upload-file", h.UploadFile)
		imports.POST("/attach-file", h.AttachFile)
		imports.POST("/detect-format", h.DetectFormat)
		imports.POST("/suggest-mapping", h.SuggestMapping)
		imports.POST("/save-mapping", h.SaveMapping)
		imports.POST("/stage", h.Stage)
		imports.POST("/validate-or-apply", h.ValidateOrApply)
		imports.POST("/discard-batch", h.DiscardBatch)
		imports.POST("/get-batch-status", h.GetBatchStatus)
		imports.POST("/list-rows", h.ListRows)
	}
}
