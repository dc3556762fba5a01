package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-api/internal/metrics"
	"go.uber.org/zap"
)

// RouterConfig holds everything the router needs
type RouterConfig struct {
	MeasureHandler *MeasureHandler
	Logger         *zap.Logger
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// NewRouter builds the gin engine serving the measure API
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestContext(cfg.Logger))
	router.Use(Metrics())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(CORS(cfg.AllowedOrigins))
	}
	router.Use(BodyLimit(cfg.MaxBodyBytes))

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.POST("/upload", cfg.MeasureHandler.Upload)
	router.PATCH("/confirm", cfg.MeasureHandler.Confirm)
	router.GET("/:customer_code/list", cfg.MeasureHandler.List)

	router.NoRoute(NotFound)

	return router
}

// NewServer wraps the router in an http.Server listening on addr
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
}
