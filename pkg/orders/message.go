package orders

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/example/basalto/pkg/models"
)

const PreorderNotice = "Pre-order — producción por lote.\n" +
	"Tu pedido se confecciona especialmente para vos.\n" +
	"Producción: 10–15 días.\n" +
	"Envío: San Salvador 3 días · departamentos 4–5 días hábiles.\n"

const transferInfo = "Transferencia bancaria:\n" +
	"Banco: BANCO AGRICOLA\n" +
	"Cuenta de ahorro: 3550507559\n" +
	"A nombre de: WILDER DIAZ\n" +
	"Referencia: %s\n" +
	"Enviá tu comprobante por este chat para confirmar tu pre-order.\n"

// BuildMessage renders the human-readable order summary shared over
// WhatsApp: itemized lines, totals, shipping data and payment instructions.
// order.Items should have Variant populated where the link survives.
func BuildMessage(order *models.Order) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Pedido BASALTO: %s", order.OrderNumber))
	lines = append(lines, "")

	for _, it := range order.Items {
		skuTxt := ""
		if it.Variant != nil {
			skuTxt = fmt.Sprintf(" | SKU %s", it.Variant.SKU)
		}
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | Talla %s | x%d — $%s%s",
			it.Title, it.Sleeve, it.Color, it.Size, it.Qty, it.UnitPrice.StringFixed(2), skuTxt))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Subtotal: $%s", order.Subtotal.StringFixed(2)))
	lines = append(lines, fmt.Sprintf("Envío (El Salvador): $%s", order.Shipping.StringFixed(2)))
	lines = append(lines, fmt.Sprintf("Total: $%s", order.Total.StringFixed(2)))
	lines = append(lines, "")
	lines = append(lines, "Datos de envío:")
	lines = append(lines, fmt.Sprintf("Nombre: %s", order.FullName))
	lines = append(lines, fmt.Sprintf("Tel: %s", order.Phone))
	addr := strings.TrimSpace(order.AddressLine1 + " " + order.AddressLine2)
	lines = append(lines, fmt.Sprintf("Dirección: %s", addr))
	if order.City != "" {
		lines = append(lines, fmt.Sprintf("Ciudad/Municipio: %s", order.City))
	}
	if order.Department != "" {
		lines = append(lines, fmt.Sprintf("Departamento: %s", order.Department))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Método de pago: %s", strings.ToUpper(order.PaymentMethod)))
	lines = append(lines, "")
	lines = append(lines, strings.TrimSpace(PreorderNotice))

	if order.PaymentMethod == models.PaymentTransfer {
		lines = append(lines, "")
		lines = append(lines, strings.TrimSpace(fmt.Sprintf(transferInfo, order.OrderNumber)))
	}
	if order.PaymentLink != "" {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Link de pago (Wompi): %s", order.PaymentLink))
	}

	return strings.Join(lines, "\n")
}

// WhatsAppURL is the wa.me deep link pre-filled with the order summary.
func WhatsAppURL(phone, message string) string {
	// QueryEscape uses '+' for spaces, which wa.me renders literally.
	escaped := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, escaped)
}
