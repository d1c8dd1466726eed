package orders

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/example/basalto/pkg/models"
)

func messageFixture() *models.Order {
	variant := &models.Variant{SKU: "BAS-CC-ML-NGR-S"}
	return &models.Order{
		OrderNumber:   "BAS-20240101-1234",
		PaymentMethod: models.PaymentTransfer,
		FullName:      "Ana Pérez",
		Phone:         "7777-0000",
		AddressLine1:  "Col. Escalón",
		AddressLine2:  "casa 12",
		City:          "San Salvador",
		Department:    "San Salvador",
		Subtotal:      decimal.RequireFromString("60.00"),
		Shipping:      decimal.RequireFromString("3.00"),
		Total:         decimal.RequireFromString("63.00"),
		Items: []models.OrderItem{
			{
				Title:     "Camisa cuello chino",
				Sleeve:    "Manga larga",
				Color:     "Negro",
				Size:      "S",
				Qty:       2,
				UnitPrice: decimal.RequireFromString("30.00"),
				Variant:   variant,
			},
		},
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(messageFixture())

	assert.Contains(t, msg, "Pedido BASALTO: BAS-20240101-1234")
	assert.Contains(t, msg, "- Camisa cuello chino | Manga larga | Negro | Talla S | x2 — $30.00 | SKU BAS-CC-ML-NGR-S")
	assert.Contains(t, msg, "Subtotal: $60.00")
	assert.Contains(t, msg, "Envío (El Salvador): $3.00")
	assert.Contains(t, msg, "Total: $63.00")
	assert.Contains(t, msg, "Dirección: Col. Escalón casa 12")
	assert.Contains(t, msg, "Método de pago: TRANSFER")
	assert.Contains(t, msg, "BANCO AGRICOLA")
	assert.Contains(t, msg, "Referencia: BAS-20240101-1234")
	assert.NotContains(t, msg, "Link de pago")
}

func TestBuildMessageCardWithLink(t *testing.T) {
	order := messageFixture()
	order.PaymentMethod = models.PaymentCard
	order.PaymentLink = "https://pay.example/abc"

	msg := BuildMessage(order)

	assert.Contains(t, msg, "Link de pago (Wompi): https://pay.example/abc")
	assert.NotContains(t, msg, "BANCO AGRICOLA")
}

func TestWhatsAppURL(t *testing.T) {
	u := WhatsAppURL("50300000000", "hola mundo")

	assert.True(t, strings.HasPrefix(u, "https://wa.me/50300000000?text="))
	assert.Contains(t, u, "hola%20mundo")
	assert.NotContains(t, u, "+")
}
