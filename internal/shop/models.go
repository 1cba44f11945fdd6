package shop

import "time"

// Product is a catalog entry. Field names match the rows the browser storefront
// already writes to the shared table.
type Product struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	Category      string   `json:"category"`
	Image         string   `json:"image"`
	Description   string   `json:"description"`
	Sizes         []string `json:"sizes,omitempty"`
}

// EffectivePrice is the discount price when one is set, the base price otherwise.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 {
		return *p.DiscountPrice
	}
	return p.Price
}

// CartItem is a product snapshot with the price frozen at add time.
type CartItem struct {
	Product
	Quantity     int    `json:"quantity"`
	SelectedSize string `json:"selectedSize,omitempty"`
	CartID       string `json:"cartId"`
}

// OrderStatus is the fulfilment state an admin moves an order through.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"

	// StatusCompleted only appears on orders written by the first storefront
	// release. It is kept readable but cannot be assigned.
	StatusCompleted OrderStatus = "completed"
)

// Statuses lists the assignable statuses in workflow order.
var Statuses = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// Valid reports whether s can be assigned by an admin.
func (s OrderStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Order is created atomically at checkout and only ever has its status changed.
type Order struct {
	ID           string      `json:"id"`
	CustomerName string      `json:"customerName"`
	PhoneNumber  string      `json:"phoneNumber"`
	Email        string      `json:"email"`
	Address      string      `json:"address"`
	Items        []CartItem  `json:"items"`
	TotalAmount  float64     `json:"totalAmount"`
	Date         string      `json:"date"`
	Status       OrderStatus `json:"status"`
	ReceiptFile  string      `json:"receiptFile,omitempty"`
}

// Customer is the contact snapshot captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Report is a problem report submitted from the storefront.
type Report struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"date"`
}

// PopupConfig drives the ad shown when the home page opens.
type PopupConfig struct {
	IsActive bool   `json:"isActive"`
	Image    string `json:"image"`
}

// PromoConfig drives the promo card placed first in the product grid.
type PromoConfig struct {
	IsActive bool   `json:"isActive"`
	Image    string `json:"image"`
}

// SiteConfig holds storefront feature flags.
type SiteConfig struct {
	EnableTrackOrder bool `json:"enableTrackOrder"`
}
