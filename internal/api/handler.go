package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/pkg/config"
	"execution-core/pkg/db"
)

// Server wires HTTP endpoints around the engine service.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	DB        *db.Database
	Tiers     *config.TierTable
	JWTSecret string
}

// NewServer builds the router and registers all routes.
func NewServer(svc engine.Service, bus *events.Bus, database *db.Database, tiers *config.TierTable, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    svc,
		Bus:       bus,
		DB:        database,
		Tiers:     tiers,
		JWTSecret: jwtSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/orders", s.createOrder)
			protected.GET("/orders", s.listOrders)
			protected.GET("/orders/:id", s.getOrder)
			protected.PATCH("/orders/:id", s.modifyOrder)
			protected.DELETE("/orders/:id", s.cancelOrder)
			protected.DELETE("/orders", s.cancelAllOrders)
			protected.POST("/orders/:id/expire", s.expireOrder)
			protected.POST("/orders/:id/execute", s.executePaperOrder)
			protected.POST("/orders/:id/check-limit", s.checkLimitOrder)
			protected.POST("/orders/:id/check-stop", s.checkStopOrder)

			protected.POST("/ticks", s.applyPriceTick)

			protected.GET("/positions", s.getOpenPositions)
			protected.GET("/positions/closed", s.getClosedPositions)
			protected.POST("/portfolio", s.getPortfolioSummary)

			protected.POST("/approvals", s.createApprovalRequest)
			protected.GET("/approvals", s.listApprovalRequests)
			protected.POST("/approvals/:id/approve", s.approveLiveOrder)
			protected.POST("/approvals/:id/reject", s.rejectLiveOrder)

			protected.GET("/risk", s.getRiskMetrics)

			protected.GET("/connections", s.listConnections)
			protected.POST("/connections", s.createConnection)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the HTTP server on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
