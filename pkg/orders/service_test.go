package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/config"
)

func shopConfig() *config.ShopConfig {
	return &config.ShopConfig{
		Country:        "El Salvador",
		OrderPrefix:    "BAS",
		ShippingFlat:   "3.00",
		WhatsAppNumber: "50300000000",
		FrontendDomain: "https://shop.example",
		BackendDomain:  "https://api.shop.example",
	}
}

// validationService never reaches the database: every test here must fail
// before the transaction opens.
func validationService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, nil, nil, nil, shopConfig(), zap.NewNop())
}

func validPayload() *CreateOrderPayload {
	return &CreateOrderPayload{
		Country:       "El Salvador",
		PaymentMethod: "transfer",
		FullName:      "Ana Pérez",
		Phone:         "7777-0000",
		AddressLine1:  "Col. Escalón, casa 12",
		Items: []CartItemPayload{
			{Title: "Camisa", Size: "M", Qty: 1, UnitPrice: "30"},
		},
	}
}

func requireValidationCode(t *testing.T, err error, code string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, code, verr.Code)
}

func TestCreateOrderRejectsUnsupportedCountry(t *testing.T) {
	s := validationService(t)
	p := validPayload()
	p.Country = "Guatemala"

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeUnsupportedCountry)
}

func TestCreateOrderCountryIsCaseInsensitive(t *testing.T) {
	s := validationService(t)
	p := validPayload()
	p.Country = "el salvador"
	p.Items = nil // force a later validation error instead of touching the DB

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeEmptyCart)
}

func TestCreateOrderRejectsBadPaymentMethod(t *testing.T) {
	s := validationService(t)
	p := validPayload()
	p.PaymentMethod = "crypto"

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeInvalidPaymentMethod)
}

func TestCreateOrderRequiresShippingFields(t *testing.T) {
	for _, mutate := range []func(*CreateOrderPayload){
		func(p *CreateOrderPayload) { p.FullName = "  " },
		func(p *CreateOrderPayload) { p.Phone = "" },
		func(p *CreateOrderPayload) { p.AddressLine1 = "\t" },
	} {
		s := validationService(t)
		p := validPayload()
		mutate(p)

		_, err := s.CreateOrder(context.Background(), p)
		requireValidationCode(t, err, CodeMissingShippingInfo)
	}
}

func TestCreateOrderRejectsEmptyCart(t *testing.T) {
	s := validationService(t)
	p := validPayload()
	p.Items = []CartItemPayload{}

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeEmptyCart)
}

func TestPriceGivenChain(t *testing.T) {
	assert.False(t, priceGiven(nil))
	assert.False(t, priceGiven(""))
	assert.False(t, priceGiven("   "))
	assert.False(t, priceGiven(float64(0)))
	assert.False(t, priceGiven(0))

	// The literal string "0" counts as given and fails price validation
	// later instead of falling through.
	assert.True(t, priceGiven("0"))
	assert.True(t, priceGiven(float64(12.5)))
	assert.True(t, priceGiven("30"))
}

func TestCreateOrderRejectsInvalidSize(t *testing.T) {
	s := validationService(t)
	p := validPayload()
	p.Items[0].Size = "XS"

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeInvalidSize)

	p.Items[0].Size = ""
	_, err = s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeInvalidSize)
}
