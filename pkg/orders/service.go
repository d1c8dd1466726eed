// Package orders implements the order-creation transaction, payment
// confirmation and the staff dashboard operations.
package orders

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/basalto/pkg/catalog"
	"github.com/example/basalto/pkg/config"
	"github.com/example/basalto/pkg/models"
	"github.com/example/basalto/pkg/money"
	"github.com/example/basalto/pkg/repository"
)

const orderNumberAttempts = 5

var validSizes = map[string]bool{"S": true, "M": true, "L": true, "XL": true, "XXL": true}

const defaultItemTitle = "Camisa cuello chino"

// PaymentLinker is the slice of the Wompi client the coordinator needs.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, orderNumber string, amount decimal.Decimal, successURL, webhookURL string) (string, error)
}

type Service struct {
	db        *gorm.DB
	payments  PaymentLinker
	redis     *repository.RedisRepository
	mongo     *repository.MongoRepository
	shop      *config.ShopConfig
	shipping  decimal.Decimal
	genNumber func(prefix string) string
	logger    *zap.Logger
}

func NewService(db *gorm.DB, payments PaymentLinker, redisRepo *repository.RedisRepository,
	mongoRepo *repository.MongoRepository, shop *config.ShopConfig, logger *zap.Logger) *Service {
	shipping, err := decimal.NewFromString(shop.ShippingFlat)
	if err != nil || !shipping.IsPositive() {
		shipping = decimal.RequireFromString("3.00")
	}
	return &Service{
		db:        db,
		payments:  payments,
		redis:     redisRepo,
		mongo:     mongoRepo,
		shop:      shop,
		shipping:  shipping,
		genNumber: GenerateOrderNumber,
		logger:    logger,
	}
}

// CreateOrderPayload is the storefront checkout body.
type CreateOrderPayload struct {
	Country       string            `json:"country"`
	PaymentMethod string            `json:"payment_method"`
	FullName      string            `json:"full_name"`
	Phone         string            `json:"phone"`
	AddressLine1  string            `json:"address_line1"`
	AddressLine2  string            `json:"address_line2"`
	Department    string            `json:"department"`
	City          string            `json:"city"`
	Notes         string            `json:"notes"`
	Items         []CartItemPayload `json:"items"`
}

// CartItemPayload is one raw cart line. Qty and prices arrive as numbers or
// strings depending on the storefront build, so they decode loosely.
type CartItemPayload struct {
	Title     string      `json:"title"`
	Sleeve    string      `json:"sleeve"`
	Color     string      `json:"color"`
	Size      string      `json:"size"`
	Fabric    string      `json:"fabric"`
	Img       string      `json:"img"`
	Qty       interface{} `json:"qty"`
	SKU       string      `json:"sku"`
	UnitPrice interface{} `json:"unit_price"`
	Price     interface{} `json:"price"`
}

// priceGiven reports whether a loosely decoded price value actually carries
// one. Nil, blank strings and numeric zero fall through to the next
// candidate in the unit_price, price, "0" chain; the literal string "0" is
// a given price and fails validation downstream.
func priceGiven(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// OrderResult is a successful checkout.
type OrderResult struct {
	Order       *models.Order
	Message     string
	WhatsAppURL string
}

// CreateOrder validates the cart, then in one transaction locks the
// referenced variants, verifies stock, resolves authoritative prices,
// persists the order with its items, decrements inventory and, for card
// payments, requests a hosted payment link before committing. A failed link
// request still commits the order (inventory stays decremented) and returns
// a *PaymentLinkError carrying the order number.
func (s *Service) CreateOrder(ctx context.Context, payload *CreateOrderPayload) (*OrderResult, error) {
	country := strings.TrimSpace(payload.Country)
	if country == "" {
		country = s.shop.Country
	}
	if !strings.EqualFold(country, s.shop.Country) {
		return nil, validationErr(CodeUnsupportedCountry, "Solo enviamos a %s", s.shop.Country)
	}

	paymentMethod := strings.ToLower(strings.TrimSpace(payload.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = models.PaymentCard
	}
	if paymentMethod != models.PaymentCard && paymentMethod != models.PaymentTransfer {
		return nil, validationErr(CodeInvalidPaymentMethod, "Método de pago inválido")
	}

	fullName := strings.TrimSpace(payload.FullName)
	phone := strings.TrimSpace(payload.Phone)
	addressLine1 := strings.TrimSpace(payload.AddressLine1)
	if fullName == "" || phone == "" || addressLine1 == "" {
		return nil, validationErr(CodeMissingShippingInfo, "Faltan datos de envío")
	}

	if len(payload.Items) == 0 {
		return nil, validationErr(CodeEmptyCart, "Carrito vacío")
	}

	// Pre-clean lines and aggregate demand per SKU across the cart.
	cleaned := make([]catalog.CartLine, 0, len(payload.Items))
	skusNeeded := map[string]int{}
	for _, it := range payload.Items {
		size := strings.ToUpper(strings.TrimSpace(it.Size))
		if !validSizes[size] {
			return nil, validationErr(CodeInvalidSize, "Talla inválida")
		}

		qty := money.NormalizeQty(it.Qty, 1)
		if qty < 1 {
			qty = 1
		}

		sku := strings.TrimSpace(it.SKU)
		if sku != "" {
			skusNeeded[sku] += qty
		}

		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = defaultItemTitle
		}

		rawPrice := it.UnitPrice
		if !priceGiven(rawPrice) {
			rawPrice = it.Price
		}

		cleaned = append(cleaned, catalog.CartLine{
			Title:    title,
			Sleeve:   strings.TrimSpace(it.Sleeve),
			Color:    strings.TrimSpace(it.Color),
			Size:     size,
			Fabric:   strings.TrimSpace(it.Fabric),
			Img:      strings.TrimSpace(it.Img),
			Qty:      qty,
			SKU:      sku,
			RawPrice: rawPrice,
		})
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Lock referenced variants before reading inventory. Two concurrent
	// checkouts for the same SKU serialize here; the loser re-reads the
	// decremented stock and may fail below.
	variantsBySKU := map[string]*models.Variant{}
	if len(skusNeeded) > 0 {
		skus := make([]string, 0, len(skusNeeded))
		for sku := range skusNeeded {
			skus = append(skus, sku)
		}
		sort.Strings(skus)

		var variants []models.Variant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Product").
			Where("sku IN ? AND active = ?", skus, true).
			Find(&variants).Error; err != nil {
			return nil, err
		}
		for i := range variants {
			variantsBySKU[variants[i].SKU] = &variants[i]
		}

		var missing []string
		for _, sku := range skus {
			if variantsBySKU[sku] == nil {
				missing = append(missing, sku)
			}
		}
		if len(missing) > 0 {
			return nil, validationErr(CodeSKUNotFound,
				"SKU no existe o inactivo: %s", strings.Join(missing, ", "))
		}

		for _, sku := range skus {
			v := variantsBySKU[sku]
			if need := skusNeeded[sku]; v.Inventory < need {
				return nil, validationErr(CodeInsufficientStock,
					"Sin stock para %s (stock %d, requerido %d)", sku, v.Inventory, need)
			}
		}
	}

	// Resolve prices. Catalog lines take price and display fields from the
	// locked rows; ad hoc lines keep their normalized client price.
	resolved := make([]catalog.ResolvedLine, 0, len(cleaned))
	subtotal := decimal.Zero
	for _, line := range cleaned {
		r, err := catalog.Resolve(line, variantsBySKU)
		if err != nil {
			if errors.Is(err, catalog.ErrInvalidPrice) {
				return nil, validationErr(CodeInvalidPrice, "Precio inválido")
			}
			return nil, err
		}
		resolved = append(resolved, r)
		subtotal = subtotal.Add(r.LineTotal)
	}

	shipping := s.shipping
	total := subtotal.Add(shipping)

	order := &models.Order{
		Status:        models.StatusPending,
		PaymentMethod: paymentMethod,
		Country:       s.shop.Country,
		FullName:      fullName,
		Phone:         phone,
		AddressLine1:  addressLine1,
		AddressLine2:  strings.TrimSpace(payload.AddressLine2),
		Department:    strings.TrimSpace(payload.Department),
		City:          strings.TrimSpace(payload.City),
		Notes:         strings.TrimSpace(payload.Notes),
		Subtotal:      subtotal,
		Shipping:      shipping,
		Total:         total,
	}
	if err := s.insertWithFreshNumber(tx, order); err != nil {
		return nil, err
	}

	// Decrement inventory by aggregated demand.
	for sku, need := range skusNeeded {
		v := variantsBySKU[sku]
		v.Inventory -= need
		if err := tx.Model(v).Update("inventory", v.Inventory).Error; err != nil {
			return nil, err
		}
	}

	// Snapshot one item row per cart line.
	for i := range resolved {
		r := &resolved[i]
		item := models.OrderItem{
			OrderID:   order.ID,
			Title:     r.Title,
			Sleeve:    r.Sleeve,
			Color:     r.Color,
			Size:      r.Size,
			Fabric:    r.Fabric,
			Img:       r.Img,
			Qty:       r.Qty,
			UnitPrice: r.UnitPrice,
			LineTotal: r.LineTotal,
		}
		if r.Variant != nil {
			id := r.Variant.ID
			item.VariantID = &id
			item.Variant = r.Variant
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if paymentMethod == models.PaymentCard {
		// The link request deliberately runs inside the transaction; its
		// failure must not undo the order, so the failure path commits too.
		link, err := s.payments.CreatePaymentLink(ctx, order.OrderNumber, order.Total,
			s.shop.SuccessURL(), s.shop.WebhookURL())
		if err != nil {
			s.logger.Error("Payment link creation failed",
				zap.String("order_number", order.OrderNumber), zap.Error(err))

			order.PaymentLink = ""
			order.Status = models.StatusPending
			if uerr := tx.Model(order).Select("payment_link", "status").
				Updates(map[string]interface{}{"payment_link": "", "status": models.StatusPending}).Error; uerr != nil {
				return nil, uerr
			}
			if cerr := tx.Commit().Error; cerr != nil {
				return nil, cerr
			}
			committed = true
			s.afterCommit(order, "create_order_payment_failed")
			return nil, &PaymentLinkError{OrderNumber: order.OrderNumber, Err: err}
		}

		order.PaymentLink = link
		order.Status = models.StatusPaymentLinkCreated
		if err := tx.Model(order).Select("payment_link", "status").
			Updates(map[string]interface{}{"payment_link": link, "status": models.StatusPaymentLinkCreated}).Error; err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	s.afterCommit(order, "create_order")

	message := BuildMessage(order)
	return &OrderResult{
		Order:       order,
		Message:     message,
		WhatsAppURL: WhatsAppURL(s.shop.WhatsAppNumber, message),
	}, nil
}

// insertWithFreshNumber retries the insert with a regenerated order number
// when the random suffix collides on the unique key.
func (s *Service) insertWithFreshNumber(tx *gorm.DB, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = s.genNumber(s.shop.OrderPrefix)
		err = tx.Create(order).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		s.logger.Warn("Order number collision, regenerating",
			zap.String("order_number", order.OrderNumber))
	}
	return err
}

// afterCommit performs the non-transactional bookkeeping: redis order cache
// and the mongo audit trail. Both are best-effort.
func (s *Service) afterCommit(order *models.Order, action string) {
	ctx, cancel := contextWithDefaultTimeout()
	defer cancel()

	if s.redis != nil {
		if err := s.redis.CacheOrder(ctx, &repository.OrderCache{
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			PaymentLink: order.PaymentLink,
			Total:       order.Total.StringFixed(2),
		}); err != nil {
			s.logger.Warn("Order cache write failed", zap.Error(err))
		}
	}

	if s.mongo != nil {
		go func() {
			ctx, cancel := contextWithDefaultTimeout()
			defer cancel()
			_ = s.mongo.CreateAuditLog(ctx, &repository.AuditLog{
				Action:   action,
				EntityID: order.OrderNumber,
				Data: bson.M{
					"status":         order.Status,
					"payment_method": order.PaymentMethod,
					"total":          order.Total.StringFixed(2),
				},
			})
		}()
	}
}

// ConfirmPayment transitions the referenced order to paid, once. Orders not
// in pending or payment_link_created are left untouched and reported as a
// no-op, which keeps webhook redelivery harmless.
func (s *Service) ConfirmPayment(ctx context.Context, reference string) (bool, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("order_number = ? AND status IN ?", reference,
			[]string{models.StatusPending, models.StatusPaymentLinkCreated}).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	order.Status = models.StatusPaid
	if err := s.db.WithContext(ctx).Model(&order).Update("status", models.StatusPaid).Error; err != nil {
		return false, err
	}

	if s.redis != nil {
		if cerr := s.redis.InvalidateOrder(ctx, order.OrderNumber); cerr != nil {
			s.logger.Warn("Order cache invalidation failed", zap.Error(cerr))
		}
	}
	s.afterCommit(&order, "confirm_payment")
	return true, nil
}

// OrderSummary is the light order view served to the payment success page.
type OrderSummary struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
}

// OrderSummary answers from the redis cache when it can, falling back to the
// database and re-priming the cache on a miss. Every status write
// invalidates the key, so a hit is never stale.
func (s *Service) OrderSummary(ctx context.Context, number string) (*OrderSummary, error) {
	if s.redis != nil {
		cached, err := s.redis.GetOrderCache(ctx, number)
		if err != nil {
			s.logger.Warn("Order cache read failed", zap.Error(err))
		} else if cached != nil {
			return &OrderSummary{
				OrderNumber: cached.OrderNumber,
				Status:      cached.Status,
				Total:       cached.Total,
			}, nil
		}
	}

	var order models.Order
	err := s.db.WithContext(ctx).Where("order_number = ?", number).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	summary := &OrderSummary{
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total.StringFixed(2),
	}
	if s.redis != nil {
		if cerr := s.redis.CacheOrder(ctx, &repository.OrderCache{
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			PaymentLink: order.PaymentLink,
			Total:       summary.Total,
		}); cerr != nil {
			s.logger.Warn("Order cache write failed", zap.Error(cerr))
		}
	}
	return summary, nil
}
