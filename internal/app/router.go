package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler   *handler.RideHandler
	SocketHandler *handler.SocketHandler
	Authenticator *middleware.Authenticator
	RedisClient   *redis.Client // nil disables idempotent replay
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// The websocket route is registered before the New Relic middleware:
	// a connection outlives any transaction and needs the raw hijackable writer.
	router.GET("/ws", deps.Authenticator.Require(), deps.SocketHandler.Connect)

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.ErrorReporter())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		// Any authenticated participant; the service restricts visibility.
		v1.GET("/rides/:id", deps.Authenticator.Require(), deps.RideHandler.GetRide)

		// Requester routes.
		users := v1.Group("/rides", authenticated(deps, domain.RoleUser)...)
		{
			users.GET("/fare", deps.RideHandler.GetFare)
			users.POST("", deps.RideHandler.CreateRide)
		}

		// Captain routes.
		captains := v1.Group("/rides", authenticated(deps, domain.RoleCaptain)...)
		{
			captains.POST("/confirm", deps.RideHandler.ConfirmRide)
			captains.POST("/start", deps.RideHandler.StartRide)
			captains.POST("/end", deps.RideHandler.EndRide)
		}
	}

	return router
}

// authenticated returns the role check followed by idempotent replay, which
// keys stored responses by caller and so must run after authentication.
func authenticated(deps RouterDeps, role domain.Role) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{deps.Authenticator.Require(role)}
	if deps.RedisClient != nil {
		chain = append(chain, middleware.IdempotencyMiddleware(deps.RedisClient))
	}
	return chain
}

// WithCORS wraps h with CORS handling for the given origins. With no origins
// h is returned as is and browsers keep their same-origin policy. Tokens
// travel in the Authorization header, so credentialed requests are not enabled.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: false,
	}).Handler(h)
}
