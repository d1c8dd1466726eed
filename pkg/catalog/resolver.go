// Package catalog resolves cart lines against the variant catalog. A line
// carrying a SKU is catalog-backed: price and display fields come from the
// Variant row, never from the client. A line without a SKU is an ad hoc item
// priced by its own (normalized) value.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/example/basalto/pkg/models"
	"github.com/example/basalto/pkg/money"
)

var ErrInvalidPrice = errors.New("resolved unit price must be positive")

type LineKind int

const (
	CatalogLine LineKind = iota
	AdHocLine
)

// CartLine is one cleaned cart entry as submitted by the storefront.
type CartLine struct {
	Title    string
	Sleeve   string
	Color    string
	Size     string
	Fabric   string
	Img      string
	Qty      int
	SKU      string
	RawPrice interface{}
}

// ResolvedLine is a cart line with an authoritative price and display
// snapshot, ready to persist as an OrderItem.
type ResolvedLine struct {
	Kind    LineKind
	Variant *models.Variant

	Title  string
	Sleeve string
	Color  string
	Size   string
	Fabric string
	Img    string

	Qty       int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Resolve prices a single line. variants maps SKU to the locked Variant rows
// fetched by the order transaction; a line's SKU is expected to be present
// there (missing SKUs abort the order before resolution).
func Resolve(line CartLine, variants map[string]*models.Variant) (ResolvedLine, error) {
	out := ResolvedLine{
		Kind:   AdHocLine,
		Title:  line.Title,
		Sleeve: line.Sleeve,
		Color:  line.Color,
		Size:   line.Size,
		Fabric: line.Fabric,
		Img:    line.Img,
		Qty:    line.Qty,
	}

	if line.SKU != "" {
		v := variants[line.SKU]
		if v == nil {
			return ResolvedLine{}, errors.New("unresolved sku: " + line.SKU)
		}
		out.Kind = CatalogLine
		out.Variant = v
		// Client-supplied values are discarded for catalog lines.
		out.Title = v.Product.Title
		out.Sleeve = v.Sleeve
		out.Color = v.Color
		out.Img = v.Img
		out.UnitPrice = v.Price
		out.Fabric = v.Fabric
	} else {
		out.UnitPrice = money.Normalize(line.RawPrice)
	}

	if !out.UnitPrice.IsPositive() {
		return ResolvedLine{}, ErrInvalidPrice
	}

	out.LineTotal = out.UnitPrice.Mul(decimal.NewFromInt(int64(out.Qty)))
	return out, nil
}
