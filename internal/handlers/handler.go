package handlers

import (
	"net/http"
	"time"

	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services    *service.Service
	log         *logger.Logger
	corsOrigins []string
}

type Option func(*Handler)

// WithCORSOrigins allows the dashboard origins for REST and WebSocket calls.
// An empty list or "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors.New(h.corsConfig()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Dashboard stream on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if h.allowAnyOrigin() {
		cfg.AllowCredentials = false
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.corsOrigins
	}
	return cfg
}

func (h *Handler) allowAnyOrigin() bool {
	if len(h.corsOrigins) == 0 {
		return true
	}
	for _, o := range h.corsOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (h *Handler) originAllowed(origin string) bool {
	if origin == "" || h.allowAnyOrigin() {
		return true
	}
	for _, o := range h.corsOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.GET("/readings/current", h.getCurrentReading)
		h.registerScanRoutes(api)
		h.registerAutoScanRoutes(api)
		h.registerHistoryRoutes(api)
	}
}

func (h *Handler) registerScanRoutes(api *gin.RouterGroup) {
	scans := api.Group("/scans")
	{
		scans.GET("", h.listScans)
		scans.POST("", h.startScan)
		scans.GET("/:id", h.getScan)
		scans.GET("/:id/image", h.getScanImage)
	}
	api.POST("/capture", h.capture)
}

func (h *Handler) registerAutoScanRoutes(api *gin.RouterGroup) {
	auto := api.Group("/autoscan")
	{
		auto.GET("", h.getAutoScan)
		auto.POST("/enable", h.enableAutoScan)
		auto.POST("/disable", h.disableAutoScan)
	}
}

func (h *Handler) registerHistoryRoutes(api *gin.RouterGroup) {
	history := api.Group("/history")
	{
		history.GET("", h.getHistory)
		history.GET("/dates", h.getHistoryDates)
	}
}
