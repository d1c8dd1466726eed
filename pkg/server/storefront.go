package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/orders"
	"github.com/example/basalto/pkg/wompi"
)

func (s *Server) createOrder(c *gin.Context) {
	var payload orders.CreateOrderPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		c.String(http.StatusBadRequest, "JSON inválido")
		return
	}

	res, err := s.orders.CreateOrder(c.Request.Context(), &payload)
	if err != nil {
		var verr *orders.ValidationError
		if errors.As(err, &verr) {
			c.String(http.StatusBadRequest, verr.Reason)
			return
		}

		var perr *orders.PaymentLinkError
		if errors.As(err, &perr) {
			// The order exists; the storefront steers the buyer to manual
			// payment and may retry link creation out-of-band.
			c.JSON(http.StatusBadGateway, gin.H{
				"ok":           false,
				"error":        "WOMPI_ERROR",
				"detail":       perr.Err.Error(),
				"order_number": perr.OrderNumber,
			})
			return
		}

		s.logger.Error("Order creation failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Error interno")
		return
	}

	order := res.Order
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"order_number":    order.OrderNumber,
		"payment_method":  order.PaymentMethod,
		"subtotal":        order.Subtotal.StringFixed(2),
		"shipping":        order.Shipping.StringFixed(2),
		"total":           order.Total.StringFixed(2),
		"payment_link":    order.PaymentLink,
		"whatsapp_url":    res.WhatsAppURL,
		"preorder_notice": orders.PreorderNotice,
	})
}

// paymentSuccess backs the processor's browser redirect. The hash only
// toggles the confirmed affordance; order state is never changed here, that
// is the webhook's job.
func (s *Server) paymentSuccess(c *gin.Context) {
	q := c.Request.URL.Query()

	ref := q.Get(wompi.ParamReference)
	if ref == "" {
		ref = q.Get("ref")
	}

	redirectOK := false
	if q.Get(wompi.ParamHash) != "" && q.Get(wompi.ParamReference) != "" {
		redirectOK = wompi.VerifyRedirectHash(s.config.Wompi.ClientSecret, q)
	}

	resp := gin.H{
		"redirect_ok":   redirectOK,
		"idTransaccion": q.Get(wompi.ParamTransactionID),
		"idEnlace":      q.Get(wompi.ParamLinkID),
		"monto":         q.Get(wompi.ParamAmount),
	}

	if ref != "" {
		summary, err := s.orders.OrderSummary(c.Request.Context(), ref)
		if err != nil {
			s.logger.Warn("Order lookup failed on payment success", zap.Error(err))
		} else if summary != nil {
			resp["order"] = gin.H{
				"order_number": summary.OrderNumber,
				"status":       summary.Status,
				"total":        summary.Total,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
