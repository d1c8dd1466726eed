// Package server exposes the HTTP surface: the storefront checkout API, the
// Wompi webhook and redirect endpoints, and the staff dashboard JSON API.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/config"
	"github.com/example/basalto/pkg/orders"
	"github.com/example/basalto/pkg/repository"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	orders *orders.Service
	mongo  *repository.MongoRepository
	router *gin.Engine
}

func NewServer(cfg *config.Config, logger *zap.Logger, orderSvc *orders.Service, mongoRepo *repository.MongoRepository) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	// The webhook contract answers 405, not 404, on a non-POST.
	router.HandleMethodNotAllowed = true

	return &Server{
		config: cfg,
		logger: logger,
		orders: orderSvc,
		mongo:  mongoRepo,
		router: router,
	}
}

func (s *Server) SetupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Storefront API
	s.router.POST("/api/orders/create", s.createOrder)

	// Payments
	s.router.POST("/wompi/callback", s.wompiCallback)
	s.router.GET("/payment/success", s.paymentSuccess)

	// Staff dashboard (JSON; auth handled by the edge proxy)
	dashboard := s.router.Group("/dashboard/api")
	{
		dashboard.GET("/orders", s.listOrders)
		dashboard.GET("/orders/:id", s.orderDetail)
		dashboard.POST("/orders/:id/update", s.updateOrder)
		dashboard.POST("/orders/:id/status", s.quickStatus)
		dashboard.POST("/order-items/:id/qty", s.updateItemQty)
		dashboard.GET("/inventory", s.listInventory)
		dashboard.GET("/inventory/:id", s.variantDetail)
		dashboard.POST("/inventory/:id/set", s.setStock)
	}

	// Swagger
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("HTTP server starting", zap.String("address", addr))
	return s.router.Run(addr)
}

// Router exposes the engine for handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
