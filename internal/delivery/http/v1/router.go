package v1

import (
	"net/http"

	"profile-registry/config"
	"profile-registry/internal/delivery/http/cache"
	"profile-registry/internal/delivery/http/middleware"
	"profile-registry/internal/delivery/http/response"
	"profile-registry/internal/domain"
	"profile-registry/internal/usecase"
	"profile-registry/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	ProfileUC domain.ProfileUsecase
	HealthUC  usecase.HealthUsecase
	Codes     cache.CodeSource // cached view of the classification registry
	Redis     *goredis.Client  // optional; nil keeps rate limits in memory
	Config    *config.Config
	JWKS      *auth.Provider // optional RS256 key source
	// Serves /metrics; nil uses the default prometheus registry
	Metrics http.Handler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(deps.Config.CORSAllowedOrigins)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthUC == nil {
			response.Success(c, http.StatusOK, "System operational", nil)
			return
		}
		status, healthy := deps.HealthUC.Check(c.Request.Context())
		if !healthy {
			response.Error(c, http.StatusServiceUnavailable, "System degraded", status)
			return
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	codes := deps.Codes
	if codes == nil {
		codes = deps.ProfileUC
	}

	v1 := r.Group("/v1")

	// Public routes
	limiter := middleware.RateLimitMiddleware(deps.Redis, middleware.DefaultRateLimitConfig(deps.Config.RateLimitPerMinute))
	NewSearchHandler(v1, deps.ProfileUC, limiter)
	NewClassificationHandler(v1, codes)

	verifier := middleware.NewVerifier(deps.Config.AuthJWTSecret, deps.JWKS)

	public := v1.Group("")
	public.Use(middleware.OptionalAuth(verifier))

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(verifier))

	NewProfileHandler(public, protected, deps.ProfileUC)

	return r
}
