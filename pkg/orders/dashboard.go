package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/basalto/pkg/models"
	"github.com/example/basalto/pkg/repository"
)

const ordersPerPage = 25

func contextWithDefaultTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// OrderList is one dashboard page of orders plus per-status counts.
type OrderList struct {
	Orders []models.Order   `json:"orders"`
	Total  int64            `json:"total"`
	Page   int              `json:"page"`
	Pages  int64            `json:"pages"`
	Stats  map[string]int64 `json:"stats"`
}

// ListOrders searches and filters orders for the dashboard: free-text match
// on order number, name, phone, city or department, optional status filter,
// 25 per page, newest first.
func (s *Service) ListOrders(ctx context.Context, q, status string, page int) (*OrderList, error) {
	db := s.db.WithContext(ctx).Model(&models.Order{})

	if q != "" {
		like := "%" + q + "%"
		db = db.Where(
			"order_number LIKE ? OR full_name LIKE ? OR phone LIKE ? OR city LIKE ? OR department LIKE ?",
			like, like, like, like, like)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	var orderRows []models.Order
	if err := db.Order("created_at DESC").
		Offset((page - 1) * ordersPerPage).
		Limit(ordersPerPage).
		Find(&orderRows).Error; err != nil {
		return nil, err
	}

	stats, err := s.orderStats(ctx)
	if err != nil {
		return nil, err
	}

	pages := (total + ordersPerPage - 1) / ordersPerPage
	return &OrderList{
		Orders: orderRows,
		Total:  total,
		Page:   page,
		Pages:  pages,
		Stats:  stats,
	}, nil
}

func (s *Service) orderStats(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := map[string]int64{}
	for _, st := range models.StatusFlow {
		stats[st] = 0
	}
	stats[models.StatusCancelled] = 0

	var total int64
	for _, r := range rows {
		stats[r.Status] = r.N
		total += r.N
	}
	stats["total"] = total
	return stats, nil
}

// TimelineStep is one stop on the fulfillment progression shown in the
// order detail view.
type TimelineStep struct {
	Key      string `json:"key"`
	IsActive bool   `json:"is_active"`
	IsDone   bool   `json:"is_done"`
}

func Timeline(order *models.Order) []TimelineStep {
	currentIndex := -1
	for i, st := range models.StatusFlow {
		if st == order.Status {
			currentIndex = i
		}
	}

	steps := make([]TimelineStep, 0, len(models.StatusFlow))
	for i, st := range models.StatusFlow {
		steps = append(steps, TimelineStep{
			Key:      st,
			IsActive: st == order.Status,
			IsDone:   currentIndex != -1 && i < currentIndex,
		})
	}
	return steps
}

func (s *Service) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Items.Variant").
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder sets status and/or tracking code from the dashboard. Status
// values outside the known set are ignored, not rejected; transitions are
// not validated against the flow (staff may skip or regress).
func (s *Service) UpdateOrder(ctx context.Context, id uint, status, tracking string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if status != "" && models.ValidStatus(status) {
		order.Status = status
	}
	order.TrackingCode = tracking

	if err := s.db.WithContext(ctx).Model(&order).
		Select("status", "tracking_code").
		Updates(map[string]interface{}{"status": order.Status, "tracking_code": order.TrackingCode}).Error; err != nil {
		return nil, err
	}

	s.invalidateAndAudit(&order, "update_order")
	return &order, nil
}

// QuickStatus is the one-click status change from the order list.
func (s *Service) QuickStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	if status == "" || !models.ValidStatus(status) {
		return s.GetOrder(ctx, id)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	order.Status = status
	if err := s.db.WithContext(ctx).Model(&order).Update("status", status).Error; err != nil {
		return nil, err
	}

	s.invalidateAndAudit(&order, "quick_status")
	return &order, nil
}

// UpdateItemQty changes a line's quantity and recomputes the line total AND
// the parent order's subtotal and total in the same transaction, keeping
// total == subtotal + shipping.
func (s *Service) UpdateItemQty(ctx context.Context, itemID uint, qty int) (*models.Order, error) {
	if qty < 1 {
		return nil, nil
	}

	var parent *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.OrderItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return err
		}

		item.Qty = qty
		// BeforeSave recomputes line_total.
		if err := tx.Save(&item).Error; err != nil {
			return err
		}

		var order models.Order
		if err := tx.Preload("Items").First(&order, item.OrderID).Error; err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, it := range order.Items {
			subtotal = subtotal.Add(it.LineTotal)
		}
		order.Subtotal = subtotal
		order.Total = subtotal.Add(order.Shipping)

		if err := tx.Model(&order).
			Select("subtotal", "total").
			Updates(map[string]interface{}{"subtotal": order.Subtotal, "total": order.Total}).Error; err != nil {
			return err
		}

		parent = &order
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.invalidateAndAudit(parent, "update_item_qty")
	return parent, nil
}

// ListVariants searches the inventory view: free-text on SKU, product title,
// color, size or sleeve, with an optional low-stock filter. Capped at 300
// rows like the original screen.
func (s *Service) ListVariants(ctx context.Context, q string, lowOnly bool) ([]models.Variant, error) {
	db := s.db.WithContext(ctx).Model(&models.Variant{}).
		Joins("JOIN products ON products.id = variants.product_id").
		Preload("Product").
		Order("products.title, variants.sleeve, variants.color, variants.size")

	if q != "" {
		like := "%" + q + "%"
		db = db.Where(
			"variants.sku LIKE ? OR products.title LIKE ? OR variants.color LIKE ? OR variants.size LIKE ? OR variants.sleeve LIKE ?",
			like, like, like, like, like)
	}
	if lowOnly {
		db = db.Where("variants.inventory <= variants.low_stock_threshold")
	}

	var variants []models.Variant
	if err := db.Limit(300).Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (s *Service) GetVariant(ctx context.Context, id uint) (*models.Variant, error) {
	var v models.Variant
	err := s.db.WithContext(ctx).Preload("Product").First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SetStock overwrites a variant's inventory from the dashboard.
func (s *Service) SetStock(ctx context.Context, id uint, inventory int) (*models.Variant, error) {
	var v models.Variant
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	v.Inventory = inventory
	if err := s.db.WithContext(ctx).Model(&v).Update("inventory", inventory).Error; err != nil {
		return nil, err
	}

	if s.mongo != nil {
		go func() {
			ctx, cancel := contextWithDefaultTimeout()
			defer cancel()
			_ = s.mongo.CreateAuditLog(ctx, &repository.AuditLog{
				Action:   "set_stock",
				EntityID: v.SKU,
				Data:     bson.M{"inventory": inventory},
			})
		}()
	}
	return &v, nil
}

func (s *Service) invalidateAndAudit(order *models.Order, action string) {
	ctx, cancel := contextWithDefaultTimeout()
	defer cancel()

	if s.redis != nil {
		if err := s.redis.InvalidateOrder(ctx, order.OrderNumber); err != nil {
			s.logger.Warn("Order cache invalidation failed", zap.Error(err))
		}
	}
	if s.mongo != nil {
		go func() {
			ctx, cancel := contextWithDefaultTimeout()
			defer cancel()
			_ = s.mongo.CreateAuditLog(ctx, &repository.AuditLog{
				Action:   action,
				EntityID: order.OrderNumber,
				Data:     bson.M{"status": order.Status},
			})
		}()
	}
}
