package routes

import (
	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/handlers"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/middleware"
	"windscapes-barcode/internal/monitoring"
)

// decodeRequestLimit bounds uploaded camera frames.
const decodeRequestLimit = 8 << 20

type Handlers struct {
	Labels   *handlers.LabelHandler
	Barcodes *handlers.BarcodeHandler
	Scans    *handlers.ScanHandler
	Products *handlers.ProductHandler
	Health   *handlers.HealthHandler
}

type Options struct {
	// APIKeyHash guards mutating endpoints when set.
	APIKeyHash string
	// DecodeRateLimit is requests per minute per client for image decoding.
	DecodeRateLimit int
	Monitor         *middleware.PerformanceMonitor
	Errors          *monitoring.ErrorTracker
	Logger          *logger.StructuredLogger
}

// NewRouter builds the engine with the standard middleware chain and all
// API routes.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	SetupRoutes(r, h, opts)
	return r
}

func SetupRoutes(r *gin.Engine, h Handlers, opts Options) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if opts.DecodeRateLimit <= 0 {
		opts.DecodeRateLimit = 60
	}

	r.Use(handlers.GlobalErrorHandler(log))
	r.Use(log.LoggingMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware())
	if opts.Monitor != nil {
		r.Use(opts.Monitor.PerformanceMiddleware())
	}
	if opts.Errors != nil {
		r.Use(opts.Errors.ErrorTrackingMiddleware())
	}
	r.NoRoute(handlers.NotFoundHandler())

	r.GET("/health", h.Health.Health)

	auth := middleware.APIKeyAuth(opts.APIKeyHash, log)
	api := r.Group("/api")
	{
		labels := api.Group("/labels")
		{
			labels.POST("/print", auth, h.Labels.PrintLabels)
		}

		api.GET("/barcodes/:identifier", h.Barcodes.GetBarcode)

		scans := api.Group("/scan")
		{
			scans.GET("/resolve", h.Scans.Resolve)
			scans.POST("/deduct", auth, h.Scans.Deduct)
			scans.POST("/decode",
				middleware.RateLimitMiddleware(opts.DecodeRateLimit),
				middleware.RequestSizeLimitMiddleware(decodeRequestLimit),
				h.Scans.Decode)
			scans.GET("/status", h.Scans.DecoderStatus)
		}

		products := api.Group("/products")
		{
			products.GET("", h.Products.ListProducts)
			products.GET("/:identifier", h.Products.GetProduct)
			products.POST("", auth, h.Products.CreateProduct)
		}
	}
}
