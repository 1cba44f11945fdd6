package storefront

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"example.com/bazaar-store/internal/assistant"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/shop"
)

// Server exposes the storefront to shoppers under /api and to the shop owner
// under /admin.
type Server struct {
	svc       *Service
	assistant *assistant.Service
	auth      *AdminAuth
	logger    *slog.Logger
}

// NewServer wires the HTTP layer. A nil assistant leaves its routes out.
func NewServer(svc *Service, chat *assistant.Service, auth *AdminAuth, logger *slog.Logger) *Server {
	return &Server{svc: svc, assistant: chat, auth: auth, logger: logger}
}

// Router configures all storefront routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": s.svc.Connection().Mode})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/home", s.handleHome)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{productID}", s.handleGetProduct)
		r.Get("/categories", s.handleCategories)

		r.Get("/cart", s.handleCart)
		r.Post("/cart/items", s.handleAddToCart)
		r.Patch("/cart/items/{cartID}", s.handleUpdateQuantity)
		r.Delete("/cart/items/{cartID}", s.handleRemoveFromCart)

		r.Post("/orders", s.handlePlaceOrder)
		r.Get("/orders/{orderID}", s.handleTrackOrder)
		r.Post("/reports", s.handleSubmitReport)

		if s.assistant != nil {
			r.Post("/assistant/sessions", s.handleStartChat)
			r.Post("/assistant/sessions/{sessionID}/messages", s.handleSendChat)
			r.Delete("/assistant/sessions/{sessionID}", s.handleEndChat)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.auth.middleware)

		r.Post("/products", s.handleAddProduct)
		r.Delete("/products/{productID}", s.handleRemoveProduct)

		r.Get("/orders", s.handleListOrders)
		r.Patch("/orders/{orderID}/status", s.handleUpdateOrderStatus)
		r.Get("/orders/{orderID}/invoice", s.handleInvoice)

		r.Get("/reports", s.handleListReports)
		r.Delete("/reports/{reportID}", s.handleDeleteReport)

		r.Put("/banner", s.handleSetBanner)
		r.Put("/popup", s.handleSetPopup)
		r.Put("/promo", s.handleSetPromo)
		r.Put("/site-config", s.handleSetSiteConfig)

		// Changing the connection reloads the whole session.
		r.Get("/connection", s.handleConnection)
		r.Put("/connection", s.handleConnect)
		r.Delete("/connection", s.handleDisconnect)
		r.Post("/factory-reset", s.handleFactoryReset)
	})
	return r
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Home())
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products := s.svc.ListProducts(q.Get("category"), q.Get("q"))
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

// productView adds the discount badge to a catalog entry.
type productView struct {
	shop.Product
	DiscountPercent int `json:"discountPercent,omitempty"`
}

func newProductView(p shop.Product) productView {
	return productView{Product: p, DiscountPercent: p.DiscountPercent()}
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	p, err := s.svc.Product(id)
	if err != nil {
		s.fail(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.svc.Categories(),
		"suggested":  shop.SuggestedCategories,
	})
}

func (s *Server) handleCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Cart())
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID int64  `json:"productId"`
		Size      string `json:"size"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	cart, err := s.svc.AddToCart(r.Context(), payload.ProductID, payload.Size)
	if err != nil {
		s.fail(w, "add to cart", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	cart, err := s.svc.UpdateQuantity(r.Context(), chi.URLParam(r, "cartID"), payload.Delta)
	if err != nil {
		s.fail(w, "update quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.svc.RemoveFromCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		s.fail(w, "remove from cart", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var customer shop.Customer
	if !decodeJSON(w, r, &customer) {
		return
	}
	order, err := s.svc.PlaceOrder(r.Context(), customer)
	if err != nil {
		s.fail(w, "place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.TrackOrder(chi.URLParam(r, "orderID"))
	if err != nil {
		s.fail(w, "track order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var in ReportInput
	if !decodeJSON(w, r, &in) {
		return
	}
	report, err := s.svc.SubmitReport(r.Context(), in)
	if err != nil {
		s.fail(w, "submit report", err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	id, greeting, err := s.assistant.StartSession(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "start assistant: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"reply":      greeting,
		"available":  s.assistant.Available(),
	})
}

func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	reply, err := s.assistant.Send(r.Context(), chi.URLParam(r, "sessionID"), payload.Message)
	if err != nil {
		s.fail(w, "assistant send", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (s *Server) handleEndChat(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.EndSession(chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, "assistant end", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var in shop.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.svc.AddProduct(r.Context(), in)
	if err != nil {
		s.fail(w, "add product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.svc.RemoveProduct(r.Context(), id); err != nil {
		s.fail(w, "remove product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.svc.Orders()
	if status := shop.OrderStatus(r.URL.Query().Get("status")); status != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "statuses": shop.Statuses})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status shop.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	order, err := s.svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), payload.Status)
	if err != nil {
		s.fail(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Invoice(chi.URLParam(r, "orderID"))
	if err != nil {
		s.fail(w, "invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reports": s.svc.Reports()})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteReport(r.Context(), chi.URLParam(r, "reportID")); err != nil {
		s.fail(w, "delete report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetBanner(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"bannerText"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := s.svc.SetBanner(r.Context(), payload.Text); err != nil {
		s.fail(w, "set banner", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bannerText": s.svc.Home().Banner})
}

func (s *Server) handleSetPopup(w http.ResponseWriter, r *http.Request) {
	var cfg shop.PopupConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.svc.SetPopupConfig(r.Context(), cfg); err != nil {
		s.fail(w, "set popup", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetPromo(w http.ResponseWriter, r *http.Request) {
	var cfg shop.PromoConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.svc.SetPromoConfig(r.Context(), cfg); err != nil {
		s.fail(w, "set promo", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetSiteConfig(w http.ResponseWriter, r *http.Request) {
	var cfg shop.SiteConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.svc.SetSiteConfig(r.Context(), cfg); err != nil {
		s.fail(w, "set site config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Connection())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var creds mirror.Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	conn, err := s.svc.Connect(r.Context(), creds)
	if err != nil {
		s.fail(w, "connect mirror", err)
		return
	}
	s.logger.Info("mirror credentials updated", "endpoint", conn.Endpoint, "mode", conn.Mode)
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.svc.Disconnect(r.Context())
	if err != nil {
		s.fail(w, "disconnect mirror", err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.FactoryReset(r.Context()); err != nil {
		s.fail(w, "factory reset", err)
		return
	}
	s.logger.Warn("factory reset performed")
	writeJSON(w, http.StatusOK, s.svc.Home())
}

// fail maps service errors onto HTTP statuses. Anything unrecognised is a
// local storage failure and gets logged.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shop.ErrValidation):
		writeError(w, http.StatusBadRequest, "%v", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, assistant.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "%v", err)
	case errors.Is(err, ErrTrackingDisabled):
		writeError(w, http.StatusForbidden, "%v", err)
	default:
		s.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "%s: %v", op, err)
	}
}

func productID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": strings.TrimSpace(fmt.Sprintf(format, args...)),
			"status":  status,
		},
	})
}
