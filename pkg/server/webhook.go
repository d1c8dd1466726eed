package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/repository"
	"github.com/example/basalto/pkg/wompi"
)

// wompiCallback confirms payments asynchronously. The signature gates
// everything: an unverified body is never parsed. Past verification the
// handler always answers 200 — processing failures are logged and recorded
// in the webhook event log rather than bounced, so the processor does not
// retry-storm us.
func (s *Server) wompiCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	signature := c.GetHeader(wompi.SignatureHeader)
	if !wompi.VerifyWebhookSignature(s.config.Wompi.ClientSecret, raw, signature) {
		s.logger.Warn("Webhook rejected: signature mismatch")
		c.Status(http.StatusUnauthorized)
		return
	}

	var data struct {
		IDExterno string `json:"IdExterno"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Error("Webhook body unparsable after valid signature", zap.Error(err))
		s.recordWebhookEvent("", raw, "error", err.Error())
		c.Status(http.StatusOK)
		return
	}

	if data.IDExterno == "" {
		s.logger.Warn("Webhook without IdExterno", zap.ByteString("body", raw))
		s.recordWebhookEvent("", raw, "missing_reference", "")
		c.Status(http.StatusOK)
		return
	}

	confirmed, err := s.orders.ConfirmPayment(c.Request.Context(), data.IDExterno)
	switch {
	case err != nil:
		s.logger.Error("Webhook processing failed",
			zap.String("reference", data.IDExterno), zap.Error(err))
		s.recordWebhookEvent(data.IDExterno, raw, "error", err.Error())
	case confirmed:
		s.logger.Info("Order confirmed via webhook", zap.String("reference", data.IDExterno))
		s.recordWebhookEvent(data.IDExterno, raw, "confirmed", "")
	default:
		s.logger.Info("Order not found or already processed",
			zap.String("reference", data.IDExterno))
		s.recordWebhookEvent(data.IDExterno, raw, "noop", "")
	}

	c.Status(http.StatusOK)
}

func (s *Server) recordWebhookEvent(reference string, raw []byte, outcome, detail string) {
	if s.mongo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mongo.RecordWebhookEvent(ctx, &repository.WebhookEvent{
			Reference: reference,
			RawBody:   string(raw),
			Outcome:   outcome,
			Detail:    detail,
		}); err != nil {
			s.logger.Warn("Webhook event log write failed", zap.Error(err))
		}
	}()
}
