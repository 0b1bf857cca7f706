package routes

import (
	"net/http"
	"os"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/handlers"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CORSMiddleware tells the browser the configured front end is allowed
// to send us credentials and the Authorization header.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// "Preflight" OPTIONS requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// CORS must be the very first thing the router uses.
	router.Use(CORSMiddleware())

	// Prometheus scrape endpoint, outside the /v1 group.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Public Pricing ---
		v1.GET("/credits/packages", h.GetCreditPackages)

		// --- Stripe Webhook (Public, signature-verified inside) ---
		v1.POST("/purchases/webhook", h.StripeWebhook)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware())
		{
			auth.GET("/profile/me", h.GetMe)

			// --- Credit Ledger ---
			auth.POST("/credits", h.CreditAction)
			auth.GET("/credits/history", h.GetCreditHistory)

			// --- AI Chat Routes ---
			auth.POST("/ai/chat", h.ChatAI)
			auth.GET("/ai/history", h.GetChatHistory)

			// --- Resume Routes ---
			auth.POST("/resumes", h.CreateResume)
			auth.GET("/resumes", h.GetMyResumes)
			auth.GET("/resumes/:id", h.GetResume)
			auth.PUT("/resumes/:id", h.UpdateResume)
			auth.DELETE("/resumes/:id", h.DeleteResume)

			// --- Purchases ---
			auth.POST("/purchases/checkout", h.CreateCheckout)
		}
	}

	return router
}
