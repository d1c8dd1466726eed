// Seeds the catalog: one product, the 10-card color/sleeve grid, five sizes
// per card. Re-running updates display fields and prices without touching
// inventory.
package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/basalto/pkg/config"
	"github.com/example/basalto/pkg/models"
)

var sizes = []string{"S", "M", "L", "XL", "XXL"}

type card struct {
	Img     string
	Sleeve  string
	SL      string
	Color   string
	CC      string
	Price   string
	Compare string
}

var cards = []card{
	// Manga larga $30 / $35
	{"images/catalogo/1.webp", "Manga larga", "ML", "Negro", "NGR", "30", "35"},
	{"images/catalogo/2.webp", "Manga larga", "ML", "Azul", "AZL", "30", "35"},
	{"images/catalogo/3.webp", "Manga larga", "ML", "Blanco", "BLN", "30", "35"},
	{"images/catalogo/4.webp", "Manga larga", "ML", "Verde musgo", "VMU", "30", "35"},
	{"images/catalogo/5.webp", "Manga larga", "ML", "Beige", "BEI", "30", "35"},

	// Manga corta $25 / $30
	{"images/catalogo/6.webp", "Manga corta", "MC", "Negro", "NGR", "25", "30"},
	{"images/catalogo/7.webp", "Manga corta", "MC", "Azul", "AZL", "25", "30"},
	{"images/catalogo/8.webp", "Manga corta", "MC", "Blanco", "BLN", "25", "30"},
	{"images/catalogo/9.webp", "Manga corta", "MC", "Verde musgo", "VMU", "25", "30"},
	{"images/catalogo/10.webp", "Manga corta", "MC", "Beige", "BEI", "25", "30"},
}

// sku builds BAS-CC-<sleeve>-<color>-<size>, e.g. BAS-CC-ML-NGR-S.
func sku(sl, cc, size string) string {
	return fmt.Sprintf("BAS-CC-%s-%s-%s", sl, cc, size)
}

func slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Variant{}, &models.Order{}, &models.OrderItem{}); err != nil {
		logger.Fatal("Failed to migrate", zap.Error(err))
	}

	title := "Camisa cuello chino"
	var product models.Product
	err = db.Where("title = ?", title).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		product = models.Product{
			Title:       title,
			Slug:        slugify(title),
			Description: "Camisas cuello chino en manta hindú. Producción por lote.",
			Active:      true,
		}
		err = db.Create(&product).Error
	}
	if err != nil {
		logger.Fatal("Failed to ensure product", zap.Error(err))
	}

	var created, updated int
	for _, c := range cards {
		price := decimal.RequireFromString(c.Price)
		compare := decimal.RequireFromString(c.Compare)

		for _, size := range sizes {
			s := sku(c.SL, c.CC, size)

			var v models.Variant
			err := db.Where("sku = ?", s).First(&v).Error
			if err == gorm.ErrRecordNotFound {
				v = models.Variant{
					ProductID: product.ID,
					SKU:       s,
					Sleeve:    c.Sleeve,
					Color:     c.Color,
					Size:      size,
					Fabric:    "Manta hindú",
					Img:       c.Img,
					Price:     price,
					CompareAt: compare,
					Inventory: 12,
					Active:    true,
				}
				if err := db.Create(&v).Error; err != nil {
					logger.Fatal("Failed to create variant", zap.String("sku", s), zap.Error(err))
				}
				created++
				continue
			}
			if err != nil {
				logger.Fatal("Failed to load variant", zap.String("sku", s), zap.Error(err))
			}

			// Refresh display fields and prices without touching inventory.
			changed := false
			if v.Img != c.Img {
				v.Img = c.Img
				changed = true
			}
			if !v.Price.Equal(price) {
				v.Price = price
				changed = true
			}
			if !v.CompareAt.Equal(compare) {
				v.CompareAt = compare
				changed = true
			}
			if v.Sleeve != c.Sleeve {
				v.Sleeve = c.Sleeve
				changed = true
			}
			if v.Color != c.Color {
				v.Color = c.Color
				changed = true
			}
			if changed {
				if err := db.Model(&v).Select("img", "price", "compare_at", "sleeve", "color").
					Updates(map[string]interface{}{
						"img": v.Img, "price": v.Price, "compare_at": v.CompareAt,
						"sleeve": v.Sleeve, "color": v.Color,
					}).Error; err != nil {
					logger.Fatal("Failed to update variant", zap.String("sku", s), zap.Error(err))
				}
				updated++
			}
		}
	}

	logger.Info("Seed complete", zap.Int("created", created), zap.Int("updated", updated))
}
