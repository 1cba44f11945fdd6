// Package storefront holds the session state of one storefront and exposes
// its shopper and admin operations over HTTP.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/bazaar-store/internal/datasync"
	"example.com/bazaar-store/internal/shop"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrTrackingDisabled = errors.New("order tracking is disabled")
)

// Service owns the session snapshot. Every mutation goes through the
// orchestrator and is committed to the snapshot only after the local write
// succeeded.
type Service struct {
	orch   *datasync.Orchestrator
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	snap datasync.Snapshot
}

func NewService(orch *datasync.Orchestrator, logger *slog.Logger) *Service {
	return &Service{
		orch:   orch,
		logger: logger.With("component", "storefront"),
		now:    time.Now,
		snap:   datasync.Defaults(),
	}
}

// Load seeds the session from the orchestrator.
func (s *Service) Load(ctx context.Context) {
	snap := s.orch.LoadAll(ctx)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.logger.Info("session loaded", "mode", s.orch.Mode(), "products", len(snap.Products), "orders", len(snap.Orders))
}

// Snapshot returns a copy of the whole session state.
func (s *Service) Snapshot() datasync.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Products is the current catalog; the assistant reads it when a chat opens.
func (s *Service) Products() []shop.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shop.CloneProducts(s.snap.Products)
}

// Home is what the landing page renders besides the product grid.
type Home struct {
	Banner       string           `json:"bannerText"`
	Popup        shop.PopupConfig `json:"popupConfig"`
	Promo        shop.PromoConfig `json:"promoConfig"`
	SiteConfig   shop.SiteConfig  `json:"siteConfig"`
	Categories   []string         `json:"categories"`
	CartCount    int              `json:"cartCount"`
	Currency     string           `json:"currency"`
	ProductCount int              `json:"productCount"`
}

func (s *Service) Home() Home {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Home{
		Banner:       s.snap.BannerText,
		Popup:        s.snap.PopupConfig,
		Promo:        s.snap.PromoConfig,
		SiteConfig:   s.snap.SiteConfig,
		Categories:   shop.Categories(s.snap.Products),
		CartCount:    shop.ItemCount(s.snap.Cart),
		Currency:     shop.Currency,
		ProductCount: len(s.snap.Products),
	}
}

func (s *Service) ListProducts(category, query string) []shop.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shop.Filter(s.snap.Products, category, query)
}

func (s *Service) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shop.Categories(s.snap.Products)
}

func (s *Service) Product(id int64) (shop.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := shop.FindProduct(s.snap.Products, id)
	if !ok {
		return shop.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// CartView is the cart with its totals.
type CartView struct {
	Items    []shop.CartItem `json:"items"`
	Count    int             `json:"count"`
	Subtotal float64         `json:"subtotal"`
	Total    float64         `json:"total"`
}

func cartView(items []shop.CartItem) CartView {
	if items == nil {
		items = []shop.CartItem{}
	}
	return CartView{
		Items:    shop.CloneCart(items),
		Count:    shop.ItemCount(items),
		Subtotal: shop.Subtotal(items).Round(2).InexactFloat64(),
		Total:    shop.OrderTotal(items),
	}
}

func (s *Service) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartView(s.snap.Cart)
}

// AddToCart adds one unit of a product. An empty size picks the product's
// first size.
func (s *Service) AddToCart(ctx context.Context, productID int64, size string) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := shop.FindProduct(s.snap.Products, productID)
	if !ok {
		return CartView{}, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	size, err := shop.ResolveSize(p, strings.TrimSpace(size))
	if err != nil {
		return CartView{}, err
	}
	return s.commitCart(ctx, shop.AddToCart(s.snap.Cart, p, size))
}

// UpdateQuantity changes a line by delta without going below one.
func (s *Service) UpdateQuantity(ctx context.Context, cartID string, delta int) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := shop.UpdateQuantity(s.snap.Cart, cartID, delta)
	if !ok {
		return CartView{}, fmt.Errorf("cart line %q: %w", cartID, ErrNotFound)
	}
	return s.commitCart(ctx, cart)
}

func (s *Service) RemoveFromCart(ctx context.Context, cartID string) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := shop.RemoveLine(s.snap.Cart, cartID)
	if !ok {
		return CartView{}, fmt.Errorf("cart line %q: %w", cartID, ErrNotFound)
	}
	return s.commitCart(ctx, cart)
}

// commitCart must be called with s.mu held.
func (s *Service) commitCart(ctx context.Context, cart []shop.CartItem) (CartView, error) {
	if err := s.orch.SaveCart(ctx, cart); err != nil {
		return CartView{}, err
	}
	s.snap.Cart = cart
	return cartView(cart), nil
}

// PlaceOrder turns the cart into a pending order and clears the cart.
func (s *Service) PlaceOrder(ctx context.Context, customer shop.Customer) (shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := func(id string) bool {
		return slices.ContainsFunc(s.snap.Orders, func(o shop.Order) bool { return o.ID == id })
	}
	order, err := shop.NewOrder(shop.NewOrderID(taken), customer, s.snap.Cart, s.now())
	if err != nil {
		return shop.Order{}, err
	}
	orders := append([]shop.Order{order}, s.snap.Orders...)
	if err := s.orch.SaveOrders(ctx, orders); err != nil {
		return shop.Order{}, err
	}
	s.snap.Orders = orders
	// The order is stored at this point; a failed cart write must not make the
	// caller place it again.
	if err := s.orch.SaveCart(ctx, []shop.CartItem{}); err != nil {
		s.logger.Error("clear cart after order failed", "order_id", order.ID, "error", err)
	}
	s.snap.Cart = []shop.CartItem{}
	s.logger.Info("order placed", "order_id", order.ID, "items", len(order.Items), "total", order.TotalAmount)
	return order, nil
}

// TrackOrder looks an order up by the number given to the customer. A
// leading '#' is ignored.
func (s *Service) TrackOrder(id string) (shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.SiteConfig.EnableTrackOrder {
		return shop.Order{}, ErrTrackingDisabled
	}
	return s.findOrder(id)
}

func (s *Service) findOrder(id string) (shop.Order, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	for _, o := range s.snap.Orders {
		if o.ID == id {
			return shop.CloneOrders([]shop.Order{o})[0], nil
		}
	}
	return shop.Order{}, fmt.Errorf("order %q: %w", id, ErrNotFound)
}

// ReportInput is the problem report form.
type ReportInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Message string `json:"message"`
}

func (s *Service) SubmitReport(ctx context.Context, in ReportInput) (shop.Report, error) {
	if strings.TrimSpace(in.Message) == "" {
		return shop.Report{}, fmt.Errorf("%w: message is required", shop.ErrValidation)
	}
	report := shop.Report{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Contact:   strings.TrimSpace(in.Contact),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := append([]shop.Report{report}, s.snap.Reports...)
	if err := s.orch.SaveReports(ctx, reports); err != nil {
		return shop.Report{}, err
	}
	s.snap.Reports = reports
	return report, nil
}
