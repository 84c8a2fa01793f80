// cmd/cartctl/output.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/store"
)

type cartView struct {
	Mode            models.Mode             `json:"mode" yaml:"mode"`
	SyncStatus      models.SyncStatus       `json:"syncStatus" yaml:"sync_status"`
	Items           []itemView              `json:"items" yaml:"items"`
	ItemCount       int                     `json:"itemCount" yaml:"item_count"`
	Subtotal        float64                 `json:"subtotal" yaml:"subtotal"`
	Discount        float64                 `json:"discount" yaml:"discount"`
	Shipping        float64                 `json:"shipping" yaml:"shipping"`
	Tax             float64                 `json:"tax" yaml:"tax"`
	Total           float64                 `json:"total" yaml:"total"`
	Coupon          string                  `json:"coupon,omitempty" yaml:"coupon,omitempty"`
	ShippingMethod  models.ShippingMethod   `json:"shippingMethod" yaml:"shipping_method"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty" yaml:"shipping_address,omitempty"`
}

type itemView struct {
	ProductID  string            `json:"productId" yaml:"product_id"`
	Name       string            `json:"name" yaml:"name"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Quantity   int               `json:"quantity" yaml:"quantity"`
	Price      float64           `json:"price" yaml:"price"`
	LineTotal  float64           `json:"lineTotal" yaml:"line_total"`
}

func viewOf(s *store.CartStore) cartView {
	v := cartView{
		Mode:            s.Mode(),
		SyncStatus:      s.SyncStatus(),
		ItemCount:       s.ItemCount(),
		Subtotal:        s.Subtotal(),
		Discount:        s.Discount(),
		Shipping:        s.Shipping(),
		Tax:             s.Tax(),
		Total:           s.Total(),
		ShippingMethod:  s.ShippingMethod(),
		ShippingAddress: s.ShippingAddress(),
		Items:           []itemView{},
	}
	if coupon := s.Coupon(); coupon != nil {
		v.Coupon = coupon.Code
	}
	for _, item := range s.Items() {
		v.Items = append(v.Items, itemView{
			ProductID:  item.ProductID,
			Name:       item.Product.Name,
			Attributes: item.Attributes,
			Quantity:   item.Quantity,
			Price:      item.Price,
			LineTotal:  item.Price * float64(item.Quantity),
		})
	}
	return v
}

func printCart(w io.Writer, format string, v cartView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "table", "":
		return printTable(w, v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	labelStyle  = lipgloss.NewStyle().Width(11)
)

func printTable(w io.Writer, v cartView) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mode: %s   Sync: %s\n\n", v.Mode, v.SyncStatus))

	headers := []string{"PRODUCT", "NAME", "OPTIONS", "QTY", "PRICE", "LINE"}
	rows := make([][]string, 0, len(v.Items))
	for _, item := range v.Items {
		rows = append(rows, []string{
			item.ProductID,
			item.Name,
			formatAttributes(item.Attributes),
			fmt.Sprintf("%d", item.Quantity),
			fmt.Sprintf("%.2f", item.Price),
			fmt.Sprintf("%.2f", item.LineTotal),
		})
	}
	sb.WriteString(renderTable(headers, rows))

	summary := [][2]string{
		{"Items:", fmt.Sprintf("%d", v.ItemCount)},
		{"Subtotal:", fmt.Sprintf("%.2f", v.Subtotal)},
	}
	if v.Coupon != "" {
		summary = append(summary, [2]string{"Discount:", fmt.Sprintf("-%.2f (%s)", v.Discount, v.Coupon)})
	}
	summary = append(summary,
		[2]string{"Shipping:", fmt.Sprintf("%.2f (%s)", v.Shipping, v.ShippingMethod)},
		[2]string{"Tax:", fmt.Sprintf("%.2f", v.Tax)},
		[2]string{"Total:", fmt.Sprintf("%.2f", v.Total)},
	)
	if a := v.ShippingAddress; a != nil {
		summary = append(summary, [2]string{"Ship to:", fmt.Sprintf("%s, %s, %s %s, %s", a.FullName, a.Line1, a.City, a.PostalCode, a.Country)})
	}

	sb.WriteString("\n")
	for _, line := range summary {
		sb.WriteString(labelStyle.Render(line[0]) + line[1] + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// renderTable pads every column to its widest cell.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	sep := mutedStyle.Render("|")
	var sb strings.Builder
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = headerStyle.Width(widths[i]).Render(h)
	}
	sb.WriteString(strings.Join(cells, sep) + "\n")

	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)) + "\n")

	for _, row := range rows {
		for i, cell := range row {
			cells[i] = cellStyle.Width(widths[i]).Render(cell)
		}
		sb.WriteString(strings.Join(cells, sep) + "\n")
	}
	return sb.String()
}

func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ",")
}

// resultError turns a failed engine result into a command error.
func resultError(res services.Result) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message)
}
