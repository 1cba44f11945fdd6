package shop

import (
	"fmt"
	"math"
	"strings"
)

// AllCategories is the pseudo-category that disables category filtering.
const AllCategories = "All"

// Filter returns the products in category (AllCategories or "" for any) whose
// name or description contains query, case-insensitively.
func Filter(products []Product, category, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category != "" && category != AllCategories && p.Category != category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out
}

// Categories lists AllCategories followed by each distinct product category
// in first-seen order.
func Categories(products []Product) []string {
	seen := make(map[string]bool, len(products))
	out := []string{AllCategories}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// FindProduct looks a product up by id.
func FindProduct(products []Product, id int64) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return cloneProduct(p), true
		}
	}
	return Product{}, false
}

// NextProductID returns now (Unix milliseconds) unless that collides with or
// precedes an existing id, in which case it returns one past the largest id.
func NextProductID(products []Product, nowMillis int64) int64 {
	var maxID int64
	for _, p := range products {
		maxID = max(maxID, p.ID)
	}
	if nowMillis > maxID {
		return nowMillis
	}
	return maxID + 1
}

// DiscountPercent is the rounded percentage shown on the discount badge, or
// zero when the discount has no visual effect.
func (p Product) DiscountPercent() int {
	if p.DiscountPrice == nil || *p.DiscountPrice <= 0 || *p.DiscountPrice >= p.Price {
		return 0
	}
	return int(math.Round((p.Price - *p.DiscountPrice) / p.Price * 100))
}

// CatalogText renders one line per product; it is the inventory block handed
// to the stylist assistant.
func CatalogText(products []Product) string {
	var b strings.Builder
	for i, p := range products {
		if i > 0 {
			b.WriteByte('\n')
		}
		sizes := "N/A"
		if len(p.Sizes) > 0 {
			sizes = strings.Join(p.Sizes, ",")
		}
		fmt.Fprintf(&b, "ID: %d | Name: %s | Category: %s | Price: %s %s | Description: %s | Sizes: %s",
			p.ID, p.Name, p.Category, formatAmount(p.EffectivePrice()), Currency, p.Description, sizes)
	}
	return b.String()
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
