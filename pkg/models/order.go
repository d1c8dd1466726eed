package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. Webhook confirmation only moves pending or
// payment_link_created to paid; the dashboard may set any value.
const (
	StatusPending            = "pending"
	StatusPaymentLinkCreated = "payment_link_created"
	StatusPaid               = "paid"
	StatusProcessing         = "processing"
	StatusShipped            = "shipped"
	StatusDelivered          = "delivered"
	StatusCancelled          = "cancelled"
)

// StatusFlow is the forward fulfillment progression shown on the dashboard
// timeline. cancelled sits outside the flow.
var StatusFlow = []string{
	StatusPending,
	StatusPaymentLinkCreated,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

var validStatuses = map[string]bool{
	StatusPending:            true,
	StatusPaymentLinkCreated: true,
	StatusPaid:               true,
	StatusProcessing:         true,
	StatusShipped:            true,
	StatusDelivered:          true,
	StatusCancelled:          true,
}

func ValidStatus(s string) bool {
	return validStatuses[s]
}

const (
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"type:varchar(20);uniqueIndex;not null" json:"order_number"`
	Status      string `gorm:"type:varchar(30);default:'pending'" json:"status"`

	Country      string `gorm:"type:varchar(50)" json:"country"`
	FullName     string `gorm:"type:varchar(120);not null" json:"full_name"`
	Phone        string `gorm:"type:varchar(30);not null" json:"phone"`
	AddressLine1 string `gorm:"type:varchar(180);not null" json:"address_line1"`
	AddressLine2 string `gorm:"type:varchar(180)" json:"address_line2"`
	Department   string `gorm:"type:varchar(80)" json:"department"`
	City         string `gorm:"type:varchar(80)" json:"city"`
	Notes        string `gorm:"type:text" json:"notes"`

	Subtotal decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"subtotal"`
	Shipping decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"total"`

	PaymentMethod string `gorm:"type:varchar(20);default:'card'" json:"payment_method"`
	PaymentLink   string `gorm:"type:varchar(255)" json:"payment_link"`

	TrackingCode string `gorm:"type:varchar(80)" json:"tracking_code"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`

	// Weak traceability link back to the variant the line was resolved
	// from; nulled if the variant is deleted.
	VariantID *uint    `gorm:"index" json:"variant_id"`
	Variant   *Variant `gorm:"constraint:OnDelete:SET NULL" json:"variant,omitempty"`

	// Display snapshot at time of purchase.
	Title  string `gorm:"type:varchar(120)" json:"title"`
	Sleeve string `gorm:"type:varchar(50)" json:"sleeve"`
	Color  string `gorm:"type:varchar(50)" json:"color"`
	Size   string `gorm:"type:varchar(10)" json:"size"`
	Fabric string `gorm:"type:varchar(50)" json:"fabric"`
	Img    string `gorm:"type:varchar(255)" json:"img"`

	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Qty       int             `gorm:"default:1" json:"qty"`
	LineTotal decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"line_total"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeSave keeps line_total derived from unit_price * qty on every write.
func (it *OrderItem) BeforeSave(tx *gorm.DB) error {
	it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))
	return nil
}
