package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/orders"
)

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))

	list, err := s.orders.ListOrders(c.Request.Context(), c.Query("q"), c.Query("status"), page)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) orderDetail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	order, err := s.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("Failed to load order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":    order,
		"timeline": orders.Timeline(order),
	})
}

func (s *Server) updateOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Status       string `json:"status"`
		TrackingCode string `json:"tracking_code"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.UpdateOrder(c.Request.Context(), id, req.Status, req.TrackingCode)
	if err != nil {
		s.logger.Error("Failed to update order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) quickStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.QuickStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update order status"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) updateItemQty(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Qty int `json:"qty"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.UpdateItemQty(c.Request.Context(), id, req.Qty)
	if err != nil {
		s.logger.Error("Failed to update item quantity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item quantity"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found or quantity below 1"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listInventory(c *gin.Context) {
	variants, err := s.orders.ListVariants(c.Request.Context(), c.Query("q"), c.Query("low") == "1")
	if err != nil {
		s.logger.Error("Failed to list inventory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list inventory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants, "total": len(variants)})
}

func (s *Server) variantDetail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	v, err := s.orders.GetVariant(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("Failed to load variant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load variant"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"variant": v, "low_stock": v.IsLowStock()})
}

func (s *Server) setStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Inventory int `json:"inventory"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := s.orders.SetStock(c.Request.Context(), id, req.Inventory)
	if err != nil {
		s.logger.Error("Failed to set stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set stock"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return
	}
	c.JSON(http.StatusOK, v)
}
