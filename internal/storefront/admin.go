package storefront

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"example.com/bazaar-store/internal/datasync"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/shop"
)

// AddProduct validates the form and appends the product to the catalog.
func (s *Service) AddProduct(ctx context.Context, in shop.ProductInput) (shop.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := in.Product(shop.NextProductID(s.snap.Products, s.now().UnixMilli()))
	if err != nil {
		return shop.Product{}, err
	}
	products := append(shop.CloneProducts(s.snap.Products), p)
	if err := s.orch.SaveProducts(ctx, products); err != nil {
		return shop.Product{}, err
	}
	s.snap.Products = products
	s.logger.Info("product added", "product_id", p.ID, "category", p.Category)
	return p, nil
}

// RemoveProduct deletes a product and every cart line that references it.
func (s *Service) RemoveProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.snap.Products, func(p shop.Product) bool { return p.ID == id })
	if idx < 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	products := slices.Delete(shop.CloneProducts(s.snap.Products), idx, idx+1)
	if err := s.orch.SaveProducts(ctx, products); err != nil {
		return err
	}
	s.snap.Products = products

	cart := shop.RemoveProductLines(s.snap.Cart, id)
	if len(cart) != len(s.snap.Cart) {
		if err := s.orch.SaveCart(ctx, cart); err != nil {
			return err
		}
		s.snap.Cart = cart
	}
	s.logger.Info("product removed", "product_id", id)
	return nil
}

func (s *Service) Orders() []shop.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := shop.CloneOrders(s.snap.Orders)
	if out == nil {
		out = []shop.Order{}
	}
	return out
}

// UpdateOrderStatus is the only mutation an order ever sees.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status shop.OrderStatus) (shop.Order, error) {
	if !status.Valid() {
		return shop.Order{}, fmt.Errorf("%w: unknown status %q", shop.ErrValidation, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := shop.CloneOrders(s.snap.Orders)
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders[i].Status = status
		if err := s.orch.SaveOrders(ctx, orders); err != nil {
			return shop.Order{}, err
		}
		s.snap.Orders = orders
		s.logger.Info("order status changed", "order_id", id, "status", status)
		return orders[i], nil
	}
	return shop.Order{}, fmt.Errorf("order %q: %w", id, ErrNotFound)
}

// Invoice pairs an order with its tax breakdown.
type Invoice struct {
	Order     shop.Order     `json:"order"`
	Breakdown shop.Breakdown `json:"breakdown"`
	Currency  string         `json:"currency"`
}

func (s *Service) Invoice(id string) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.findOrder(id)
	if err != nil {
		return Invoice{}, err
	}
	return Invoice{Order: o, Breakdown: shop.InvoiceBreakdown(o.TotalAmount), Currency: shop.Currency}, nil
}

func (s *Service) Reports() []shop.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.snap.Reports)
	if out == nil {
		out = []shop.Report{}
	}
	return out
}

func (s *Service) DeleteReport(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.snap.Reports, func(r shop.Report) bool { return r.ID == id })
	if idx < 0 {
		return fmt.Errorf("report %q: %w", id, ErrNotFound)
	}
	reports := slices.Delete(slices.Clone(s.snap.Reports), idx, idx+1)
	if err := s.orch.SaveReports(ctx, reports); err != nil {
		return err
	}
	s.snap.Reports = reports
	return nil
}

func (s *Service) SetBanner(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.orch.SaveBanner(ctx, text); err != nil {
		return err
	}
	s.snap.BannerText = text
	return nil
}

// SetPopupConfig refuses to activate a popup without an image.
func (s *Service) SetPopupConfig(ctx context.Context, cfg shop.PopupConfig) error {
	if cfg.IsActive && strings.TrimSpace(cfg.Image) == "" {
		return fmt.Errorf("%w: an active popup needs an image", shop.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.orch.SavePopupConfig(ctx, cfg); err != nil {
		return err
	}
	s.snap.PopupConfig = cfg
	return nil
}

// SetPromoConfig refuses to activate a promo card without an image.
func (s *Service) SetPromoConfig(ctx context.Context, cfg shop.PromoConfig) error {
	if cfg.IsActive && strings.TrimSpace(cfg.Image) == "" {
		return fmt.Errorf("%w: an active promo needs an image", shop.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.orch.SavePromoConfig(ctx, cfg); err != nil {
		return err
	}
	s.snap.PromoConfig = cfg
	return nil
}

func (s *Service) SetSiteConfig(ctx context.Context, cfg shop.SiteConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.orch.SaveSiteConfig(ctx, cfg); err != nil {
		return err
	}
	s.snap.SiteConfig = cfg
	return nil
}

func (s *Service) Connection() datasync.Connection {
	return s.orch.Connection()
}

// Connect stores remote credentials and reseeds the session from a full reload.
func (s *Service) Connect(ctx context.Context, creds mirror.Credentials) (datasync.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.orch.Connect(ctx, creds)
	if err != nil {
		return datasync.Connection{}, err
	}
	s.snap = snap
	return s.orch.Connection(), nil
}

func (s *Service) Disconnect(ctx context.Context) (datasync.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.orch.Disconnect(ctx)
	if err != nil {
		return datasync.Connection{}, err
	}
	s.snap = snap
	return s.orch.Connection(), nil
}

func (s *Service) FactoryReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.orch.FactoryReset(ctx)
	if err != nil {
		return err
	}
	s.snap = snap
	return nil
}
