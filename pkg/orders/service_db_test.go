package orders

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/basalto/pkg/models"
)

// Integration tests against a real MySQL, enabled with e.g.
//
//	BASALTO_TEST_DSN='root:root@tcp(127.0.0.1:3306)/basalto_test?charset=utf8mb4&parseTime=True&loc=Local' go test ./pkg/orders/
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("BASALTO_TEST_DSN")
	if dsn == "" {
		t.Skip("BASALTO_TEST_DSN not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Variant{}, &models.Order{}, &models.OrderItem{}))

	for _, table := range []string{"order_items", "orders", "variants", "products"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, sku string, price string, inventory int) *models.Variant {
	t.Helper()
	product := models.Product{Title: "Camisa cuello chino", Slug: "camisa-cuello-chino-" + sku}
	require.NoError(t, db.Create(&product).Error)

	v := models.Variant{
		ProductID: product.ID,
		SKU:       sku,
		Sleeve:    "Manga larga",
		Color:     "Negro",
		Size:      "S",
		Fabric:    "Manta hindú",
		Img:       "images/catalogo/1.webp",
		Price:     decimal.RequireFromString(price),
		Inventory: inventory,
		Active:    true,
	}
	require.NoError(t, db.Create(&v).Error)
	return &v
}

type fakeLinker struct {
	mu    sync.Mutex
	calls int
	link  string
	err   error
}

func (f *fakeLinker) CreatePaymentLink(ctx context.Context, orderNumber string, amount decimal.Decimal, successURL, webhookURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

func dbService(t *testing.T, db *gorm.DB, linker PaymentLinker) *Service {
	t.Helper()
	return NewService(db, linker, nil, nil, shopConfig(), zap.NewNop())
}

func cartPayload(method, sku string, qty int) *CreateOrderPayload {
	p := validPayload()
	p.PaymentMethod = method
	p.Items = []CartItemPayload{{Size: "S", Qty: qty, SKU: sku}}
	return p
}

func TestCreateOrderCardHappyPath(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	linker := &fakeLinker{link: "https://pay.example/abc"}
	s := dbService(t, db, linker)

	res, err := s.CreateOrder(context.Background(), cartPayload("card", "BAS-CC-ML-NGR-S", 2))
	require.NoError(t, err)

	order := res.Order
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("60.00")), "subtotal %s", order.Subtotal)
	assert.True(t, order.Shipping.Equal(decimal.RequireFromString("3.00")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("63.00")))
	assert.Equal(t, models.StatusPaymentLinkCreated, order.Status)
	assert.Equal(t, "https://pay.example/abc", order.PaymentLink)
	assert.Equal(t, 1, linker.calls)
	assert.Contains(t, res.WhatsAppURL, "https://wa.me/50300000000?text=")

	var v models.Variant
	require.NoError(t, db.Where("sku = ?", "BAS-CC-ML-NGR-S").First(&v).Error)
	assert.Equal(t, 3, v.Inventory)

	// Persisted totals hold the invariant.
	var saved models.Order
	require.NoError(t, db.Preload("Items").First(&saved, order.ID).Error)
	assert.True(t, saved.Total.Equal(saved.Subtotal.Add(saved.Shipping)))
	sum := decimal.Zero
	for _, it := range saved.Items {
		assert.True(t, it.LineTotal.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))))
		sum = sum.Add(it.LineTotal)
	}
	assert.True(t, saved.Subtotal.Equal(sum))
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{})

	_, err := s.CreateOrder(context.Background(), cartPayload("card", "BAS-CC-ML-NGR-S", 10))
	requireValidationCode(t, err, CodeInsufficientStock)

	var v models.Variant
	require.NoError(t, db.Where("sku = ?", "BAS-CC-ML-NGR-S").First(&v).Error)
	assert.Equal(t, 5, v.Inventory, "rollback must leave inventory untouched")

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "no order row may survive the rollback")
}

func TestCreateOrderUnknownSKU(t *testing.T) {
	db := testDB(t)
	s := dbService(t, db, &fakeLinker{})

	_, err := s.CreateOrder(context.Background(), cartPayload("card", "NOPE-1", 1))
	requireValidationCode(t, err, CodeSKUNotFound)
}

func TestCreateOrderInactiveSKURejected(t *testing.T) {
	db := testDB(t)
	v := seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	require.NoError(t, db.Model(v).Update("active", false).Error)
	s := dbService(t, db, &fakeLinker{})

	_, err := s.CreateOrder(context.Background(), cartPayload("card", "BAS-CC-ML-NGR-S", 1))
	requireValidationCode(t, err, CodeSKUNotFound)
}

func TestCreateOrderPriceAuthority(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{link: "https://pay.example/x"})

	p := cartPayload("card", "BAS-CC-ML-NGR-S", 1)
	p.Items[0].UnitPrice = "0.01"
	p.Items[0].Title = "Tampered"

	res, err := s.CreateOrder(context.Background(), p)
	require.NoError(t, err)

	var item models.OrderItem
	require.NoError(t, db.Where("order_id = ?", res.Order.ID).First(&item).Error)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("30.00")),
		"catalog price must win over the client value, got %s", item.UnitPrice)
	assert.Equal(t, "Camisa cuello chino", item.Title)
}

func TestCreateOrderTransferSkipsPaymentLink(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	linker := &fakeLinker{link: "https://pay.example/x"}
	s := dbService(t, db, linker)

	res, err := s.CreateOrder(context.Background(), cartPayload("transfer", "BAS-CC-ML-NGR-S", 1))
	require.NoError(t, err)

	assert.Zero(t, linker.calls)
	assert.Empty(t, res.Order.PaymentLink)
	assert.Equal(t, models.StatusPending, res.Order.Status)
	assert.Contains(t, res.Message, "BANCO AGRICOLA")
}

func TestCreateOrderCommitsWhenPaymentLinkFails(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	linker := &fakeLinker{err: errors.New("wompi down")}
	s := dbService(t, db, linker)

	_, err := s.CreateOrder(context.Background(), cartPayload("card", "BAS-CC-ML-NGR-S", 2))

	var perr *PaymentLinkError
	require.ErrorAs(t, err, &perr)
	require.NotEmpty(t, perr.OrderNumber)

	var order models.Order
	require.NoError(t, db.Where("order_number = ?", perr.OrderNumber).First(&order).Error)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Empty(t, order.PaymentLink)

	var v models.Variant
	require.NoError(t, db.Where("sku = ?", "BAS-CC-ML-NGR-S").First(&v).Error)
	assert.Equal(t, 3, v.Inventory, "inventory stays decremented, no compensation")
}

func TestConcurrentCheckoutsCannotOversell(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{})

	const workers = 4 // each wants 3 of 5 units; only one can win
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateOrder(context.Background(),
				cartPayload("transfer", "BAS-CC-ML-NGR-S", 3))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, CodeInsufficientStock, verr.Code)
		lost++
	}
	assert.Equal(t, 1, won, "exactly the fitting subset commits")
	assert.Equal(t, workers-1, lost)

	var v models.Variant
	require.NoError(t, db.Where("sku = ?", "BAS-CC-ML-NGR-S").First(&v).Error)
	assert.Equal(t, 2, v.Inventory)
	assert.GreaterOrEqual(t, v.Inventory, 0)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{})

	res, err := s.CreateOrder(context.Background(), cartPayload("transfer", "BAS-CC-ML-NGR-S", 1))
	require.NoError(t, err)
	ref := res.Order.OrderNumber

	confirmed, err := s.ConfirmPayment(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, confirmed)

	confirmed, err = s.ConfirmPayment(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, confirmed, "second delivery is a no-op")

	sum, err := s.OrderSummary(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, models.StatusPaid, sum.Status)

	confirmed, err = s.ConfirmPayment(context.Background(), "BAS-00000000-0000")
	require.NoError(t, err)
	assert.False(t, confirmed, "unknown reference is a no-op")
}

func TestUpdateItemQtyRecomputesParentTotals(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 10)
	s := dbService(t, db, &fakeLinker{})

	res, err := s.CreateOrder(context.Background(), cartPayload("transfer", "BAS-CC-ML-NGR-S", 1))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)

	order, err := s.UpdateItemQty(context.Background(), res.Order.Items[0].ID, 3)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("90.00")), "subtotal %s", order.Subtotal)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("93.00")), "total %s", order.Total)

	var item models.OrderItem
	require.NoError(t, db.First(&item, res.Order.Items[0].ID).Error)
	assert.Equal(t, 3, item.Qty)
	assert.True(t, item.LineTotal.Equal(decimal.RequireFromString("90.00")))
}

func TestCreateOrderRetriesOnOrderNumberCollision(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)

	taken := GenerateOrderNumber("BAS")
	require.NoError(t, db.Create(&models.Order{
		OrderNumber:  taken,
		Status:       models.StatusPending,
		FullName:     "Previa",
		Phone:        "7777-1111",
		AddressLine1: "Col. Centro",
	}).Error)

	s := dbService(t, db, &fakeLinker{})
	var calls int
	s.genNumber = func(prefix string) string {
		calls++
		if calls == 1 {
			return taken
		}
		n := GenerateOrderNumber(prefix)
		for n == taken {
			n = GenerateOrderNumber(prefix)
		}
		return n
	}

	res, err := s.CreateOrder(context.Background(), cartPayload("transfer", "BAS-CC-ML-NGR-S", 1))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one collision, one regeneration")
	assert.NotEqual(t, taken, res.Order.OrderNumber)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCreateOrderFallsBackToPriceWhenUnitPriceZero(t *testing.T) {
	db := testDB(t)
	s := dbService(t, db, &fakeLinker{})

	p := validPayload()
	p.PaymentMethod = "transfer"
	p.Items = []CartItemPayload{
		{Title: "Encargo especial", Size: "M", Qty: 1, UnitPrice: float64(0), Price: "30"},
	}

	res, err := s.CreateOrder(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.Order.Subtotal.Equal(decimal.RequireFromString("30.00")),
		"zero unit_price must fall through to price, got %s", res.Order.Subtotal)
}

func TestOrderSummaryFallsBackToDatabase(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{})

	res, err := s.CreateOrder(context.Background(), cartPayload("transfer", "BAS-CC-ML-NGR-S", 1))
	require.NoError(t, err)

	sum, err := s.OrderSummary(context.Background(), res.Order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, res.Order.OrderNumber, sum.OrderNumber)
	assert.Equal(t, models.StatusPending, sum.Status)
	assert.Equal(t, "33.00", sum.Total)

	missing, err := s.OrderSummary(context.Background(), "BAS-00000000-0000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAggregatedDemandAcrossLines(t *testing.T) {
	db := testDB(t)
	seedVariant(t, db, "BAS-CC-ML-NGR-S", "30.00", 5)
	s := dbService(t, db, &fakeLinker{})

	p := validPayload()
	p.PaymentMethod = "transfer"
	p.Items = []CartItemPayload{
		{Size: "S", Qty: 3, SKU: "BAS-CC-ML-NGR-S"},
		{Size: "S", Qty: 3, SKU: "BAS-CC-ML-NGR-S"},
	}

	_, err := s.CreateOrder(context.Background(), p)
	requireValidationCode(t, err, CodeInsufficientStock)
}
