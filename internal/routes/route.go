package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/config"
	"github.com/joshua-takyi/eventhub/internal/container"
	"github.com/joshua-takyi/eventhub/internal/handlers"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/metrics"
	"github.com/joshua-takyi/eventhub/internal/middleware"
	"github.com/joshua-takyi/eventhub/internal/realtime"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	cfg := container.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	origins := cfg.FrontendOrigins()
	supabaseAuth := cfg.AuthProvider == config.AuthProviderSupabase

	r := gin.New()
	// multipart bodies beyond this spill to disk
	r.MaxMultipartMemory = helpers.MaxImageSize
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", realtime.ServeWs(container.Hub, realtime.NewUpgrader(origins), container.Logger))

	authed := []gin.HandlerFunc{middleware.AuthMiddleware(container.TokenVerifier, container.Logger)}
	if supabaseAuth {
		// Google sign-ins never pass through register or login
		authed = append(authed, middleware.EnsureProfile(container.UserService, container.Logger))
	}
	cookies := handlers.CookieOptions{Secure: cfg.IsProduction()}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", health)

		eventRoutes := v1.Group("/events")
		{
			eventRoutes.GET("/search", handlers.SearchEvents(container.EventService))
			eventRoutes.GET("", handlers.ListEvents(container.EventService))
			eventRoutes.GET("/:id", handlers.GetEvent(container.EventService))

			owned := eventRoutes.Group("", authed...)
			owned.POST("", handlers.CreateEvent(container.EventService))
			owned.PUT("/:id", handlers.UpdateEvent(container.EventService))
			owned.DELETE("/:id", handlers.DeleteEvent(container.EventService))
			owned.POST("/:id/join", handlers.JoinEvent(container.EventService))
			owned.POST("/:id/leave", handlers.LeaveEvent(container.EventService))
		}

		userRoutes := v1.Group("/users")
		{
			userRoutes.POST("/register", handlers.Register(container.UserService, cookies))
			userRoutes.POST("/login", handlers.Login(container.UserService, cookies))
			userRoutes.POST("/logout", handlers.Logout(cookies))
			userRoutes.Group("", authed...).GET("/profile", handlers.Profile(container.UserService))

			if supabaseAuth {
				userRoutes.GET("/auth/google", handlers.GoogleAuth(cfg.SupabaseURL, origins[0]))
				userRoutes.GET("/auth/google/callback", handlers.GoogleAuthCallback(origins[0]))
			}
		}
	}

	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "eventhub-api",
	})
}
