// Package api exposes the HTTP read/update surface.
package api

import (
	"context"
	"net/http"
	"time"

	"framtrack/internal/config"
	"framtrack/internal/store"
	"framtrack/internal/updater"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server holds dependencies for the API endpoints.
type Server struct {
	logger   *zap.Logger
	store    *store.Store
	engine   *updater.Engine
	upgrader websocket.Upgrader
}

// NewServer creates a new API server.
func NewServer(logger *zap.Logger, st *store.Store, engine *updater.Engine) *Server {
	return &Server{
		logger: logger,
		store:  st,
		engine: engine,
		upgrader: websocket.Upgrader{
			// Data is public and read-only; any origin may subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin router with all routes and middleware attached.
func (s *Server) Router(cfg *config.Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(rateLimitMiddleware(cfg))

	router.GET("/", s.rootHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tractor-sales", s.listSalesHandler)
		v1.GET("/company/:name", s.companyHandler)
		v1.GET("/market-trends", s.trendsHandler)
		v1.POST("/update-data", s.updateHandler)
		v1.GET("/health", s.healthHandler)
		v1.GET("/stream", s.streamHandler)
	}

	return router
}

// corsMiddleware allows cross-origin reads from any dashboard frontend.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware applies a process-wide request budget.
func rateLimitMiddleware(cfg *config.Server) gin.HandlerFunc {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMin)/60.0), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "FramTrack - Tractor Sales Analytics API",
		"version": "2.0.0",
		"endpoints": gin.H{
			"sales":   "/api/v1/tractor-sales",
			"company": "/api/v1/company/{company_name}",
			"trends":  "/api/v1/market-trends",
			"update":  "/api/v1/update-data",
			"health":  "/api/v1/health",
			"stream":  "/api/v1/stream",
		},
		"last_updated": formatTime(s.store.LastUpdated()),
	})
}

func (s *Server) listSalesHandler(c *gin.Context) {
	payload, ok := s.listPayload()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"detail": "Sales data not available. Please try again later.",
		})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) companyHandler(c *gin.Context) {
	if len(s.store.GetAll()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Sales data not available"})
		return
	}

	name := c.Param("name")
	snap, err := s.store.GetByName(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Company '" + name + "' not found",
		})
		return
	}
	c.JSON(http.StatusOK, toView(snap))
}

func (s *Server) trendsHandler(c *gin.Context) {
	trends, err := s.store.Trends(50)
	if err != nil {
		s.logger.Error("Failed to load market trends", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load market trends"})
		return
	}

	views := make([]trendView, 0, len(trends))
	for _, t := range trends {
		views = append(views, trendView{
			TrendType:    t.TrendType,
			Value:        t.Value,
			DateRecorded: formatTime(t.DateRecorded),
			Description:  t.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trends": views})
}

func (s *Server) updateHandler(c *gin.Context) {
	if s.engine.Running() {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Data update already in progress",
			"status":  "busy",
		})
		return
	}

	// The update outlives the request; detach it from the request context.
	go func() {
		if err := s.engine.UpdateNow(context.Background()); err != nil {
			s.logger.Error("Manual update failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Data update initiated",
		"status":  "processing",
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      formatTime(time.Now()),
		"data_available": len(s.store.GetAll()) > 0,
		"last_update":    formatTime(s.store.LastUpdated()),
	})
}

// streamHandler pushes the full sales payload to the client on connect and
// again each time a new snapshot is committed.
func (s *Server) streamHandler(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	signals, cancel, err := s.store.Subscribe()
	if err != nil {
		s.logger.Error("Failed to subscribe to snapshot changes", zap.Error(err))
		return
	}
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is how
	// we learn the peer closed the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if payload, ok := s.listPayload(); ok {
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case <-signals:
			payload, ok := s.listPayload()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}
}
