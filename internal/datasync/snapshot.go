package datasync

import (
	"bytes"
	"encoding/json"
	"slices"

	"example.com/bazaar-store/internal/shop"
)

// Persisted key names. They match the keys the browser storefront writes, so a
// shared remote table can be read by either.
const (
	KeyProducts    = "products"
	KeyOrders      = "orders"
	KeyReports     = "reports"
	KeyBanner      = "bannerText"
	KeyPopupConfig = "popupConfig"
	KeyPromoConfig = "promoConfig"
	KeySiteConfig  = "siteConfig"
	KeyCart        = "cart"

	KeyMirrorEndpoint  = "sb_url"
	KeyMirrorAccessKey = "sb_key"
)

// DataKeys lists every entity key in load order.
var DataKeys = []string{
	KeyProducts, KeyOrders, KeyReports, KeyBanner,
	KeyPopupConfig, KeyPromoConfig, KeySiteConfig, KeyCart,
}

// Snapshot is the full set of entity collections loaded at session start.
type Snapshot struct {
	Products    []shop.Product   `json:"products"`
	Orders      []shop.Order     `json:"orders"`
	Reports     []shop.Report    `json:"reports"`
	BannerText  string           `json:"bannerText"`
	PopupConfig shop.PopupConfig `json:"popupConfig"`
	PromoConfig shop.PromoConfig `json:"promoConfig"`
	SiteConfig  shop.SiteConfig  `json:"siteConfig"`
	Cart        []shop.CartItem  `json:"cart"`
}

// Defaults returns the built-in snapshot used for absent keys.
func Defaults() Snapshot {
	return Snapshot{
		Products:   shop.DefaultProducts(),
		Orders:     []shop.Order{},
		Reports:    []shop.Report{},
		BannerText: shop.DefaultBanner,
		SiteConfig: shop.DefaultSiteConfig(),
		Cart:       []shop.CartItem{},
	}
}

// Clone deep-copies the snapshot so callers can hand it out freely.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Products = shop.CloneProducts(s.Products)
	out.Orders = shop.CloneOrders(s.Orders)
	out.Cart = shop.CloneCart(s.Cart)
	out.Reports = slices.Clone(s.Reports)
	return out
}

// apply decodes raw into the field stored under key. JSON null counts as
// absent and leaves the field alone. It reports whether the field changed.
func (s *Snapshot) apply(key string, raw json.RawMessage) (bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	switch key {
	case KeyProducts:
		return decodeInto(raw, &s.Products)
	case KeyOrders:
		return decodeInto(raw, &s.Orders)
	case KeyReports:
		return decodeInto(raw, &s.Reports)
	case KeyBanner:
		return decodeInto(raw, &s.BannerText)
	case KeyPopupConfig:
		return decodeInto(raw, &s.PopupConfig)
	case KeyPromoConfig:
		return decodeInto(raw, &s.PromoConfig)
	case KeySiteConfig:
		return decodeInto(raw, &s.SiteConfig)
	case KeyCart:
		return decodeInto(raw, &s.Cart)
	default:
		return false, nil
	}
}

// decodeInto replaces *dst wholesale, or leaves it untouched on error.
func decodeInto[T any](raw json.RawMessage, dst *T) (bool, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	*dst = v
	return true, nil
}
