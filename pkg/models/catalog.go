package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(120);not null" json:"title"`
	Slug        string    `gorm:"type:varchar(140);uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Active      bool      `gorm:"default:true" json:"active"`
	Variants    []Variant `gorm:"constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

type Variant struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Product   Product `json:"-"`

	SKU    string `gorm:"type:varchar(60);uniqueIndex;not null" json:"sku"`
	Sleeve string `gorm:"type:varchar(50)" json:"sleeve"`
	Color  string `gorm:"type:varchar(50)" json:"color"`
	Size   string `gorm:"type:varchar(10)" json:"size"`
	Fabric string `gorm:"type:varchar(50);default:'Manta hindú'" json:"fabric"`
	Img    string `gorm:"type:varchar(255)" json:"img"`

	Price     decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"price"`
	CompareAt decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"compare_at"`

	Inventory         int `gorm:"default:0" json:"inventory"`
	LowStockThreshold int `gorm:"default:3" json:"low_stock_threshold"`

	Active    bool      `gorm:"default:true" json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Variant) TableName() string {
	return "variants"
}

func (v *Variant) IsLowStock() bool {
	return v.Inventory <= v.LowStockThreshold
}
