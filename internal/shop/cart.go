package shop

import (
	"fmt"
	"slices"
)

// CartID identifies a cart line: one line per product and size.
func CartID(productID int64, size string) string {
	if size == "" {
		size = "default"
	}
	return fmt.Sprintf("%d-%s", productID, size)
}

// ResolveSize picks the size a new cart line uses. An empty size on a sized
// product selects its first size; a size the product does not offer is rejected.
func ResolveSize(p Product, size string) (string, error) {
	if len(p.Sizes) == 0 {
		if size != "" {
			return "", validationf("product %d has no sizes", p.ID)
		}
		return "", nil
	}
	if size == "" {
		return p.Sizes[0], nil
	}
	if !slices.Contains(p.Sizes, size) {
		return "", validationf("size %q is not offered for product %d", size, p.ID)
	}
	return size, nil
}

// AddToCart returns a new cart with p added: the quantity of an existing line
// is incremented, otherwise a line is appended with the effective price frozen.
func AddToCart(cart []CartItem, p Product, size string) []CartItem {
	id := CartID(p.ID, size)
	out := CloneCart(cart)
	for i := range out {
		if out[i].CartID == id {
			out[i].Quantity++
			return out
		}
	}
	item := CartItem{
		Product:      cloneProduct(p),
		Quantity:     1,
		SelectedSize: size,
		CartID:       id,
	}
	item.Price = p.EffectivePrice()
	return append(out, item)
}

// UpdateQuantity applies delta to a line, never going below one. It reports
// false when no line has that id.
func UpdateQuantity(cart []CartItem, cartID string, delta int) ([]CartItem, bool) {
	out := CloneCart(cart)
	for i := range out {
		if out[i].CartID == cartID {
			out[i].Quantity = max(1, out[i].Quantity+delta)
			return out, true
		}
	}
	return out, false
}

// RemoveLine drops one line. It reports false when no line has that id.
func RemoveLine(cart []CartItem, cartID string) ([]CartItem, bool) {
	out := make([]CartItem, 0, len(cart))
	found := false
	for _, item := range cart {
		if item.CartID == cartID {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}

// RemoveProductLines drops every line of a product, whatever its size.
func RemoveProductLines(cart []CartItem, productID int64) []CartItem {
	out := make([]CartItem, 0, len(cart))
	for _, item := range cart {
		if item.ID != productID {
			out = append(out, item)
		}
	}
	return out
}

// ItemCount is the total quantity across lines.
func ItemCount(cart []CartItem) int {
	n := 0
	for _, item := range cart {
		n += item.Quantity
	}
	return n
}

// CloneCart deep-copies a cart.
func CloneCart(cart []CartItem) []CartItem {
	if cart == nil {
		return nil
	}
	out := make([]CartItem, len(cart))
	for i, item := range cart {
		item.Product = cloneProduct(item.Product)
		out[i] = item
	}
	return out
}

func cloneProduct(p Product) Product {
	if p.DiscountPrice != nil {
		v := *p.DiscountPrice
		p.DiscountPrice = &v
	}
	p.Sizes = slices.Clone(p.Sizes)
	return p
}

// CloneProducts deep-copies a product list.
func CloneProducts(products []Product) []Product {
	if products == nil {
		return nil
	}
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = cloneProduct(p)
	}
	return out
}
