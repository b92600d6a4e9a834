package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/randmeme/internal/api/handler"
	"github.com/timmy/randmeme/internal/api/middleware"
	"github.com/timmy/randmeme/internal/logger"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Images *handler.ImageHandler
	Health *handler.HealthHandler
	Logger *logger.Logger
	CORS   middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - deps: handlers, logger and CORS settings.
//   - mode: gin mode ("release", "test" or debug for anything else).
// Returns:
//   - *gin.Engine: router ready to serve.
func SetupRouter(deps *RouterDeps, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.NoCache())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(deps.CORS))

	r.GET("/", deps.Images.RandomImage)
	r.GET("/health", deps.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
