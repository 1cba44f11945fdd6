package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/bazaar-store/internal/assistant"
	"example.com/bazaar-store/internal/logging"
	"example.com/bazaar-store/internal/shop"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := NewAdminAuth("admin", string(hash), "")
	require.NoError(t, err)

	chat := assistant.NewService(nil, f.svc.Products, logging.Discard())
	srv := httptest.NewServer(NewServer(f.svc, chat, auth, logging.Discard()).Router())
	t.Cleanup(srv.Close)
	return srv, f
}

func do(t *testing.T, method, target string, body any, admin bool) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, target, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.SetBasicAuth("admin", "s3cret")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestShopperFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/products?category="+url.QueryEscape("رجال"), nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["products"], 2)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/cart/items", map[string]any{"productId": 1, "size": "M"}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, body = do(t, http.MethodPatch, srv.URL+"/api/cart/items/1-M", map[string]any{"delta": 1}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/orders", shop.Customer{Name: "Sara", Phone: "0600", Email: "sara@example.com", Address: "Rabat"}, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 276, body["totalAmount"])
	orderID, _ := body["id"].(string)
	require.Len(t, orderID, 7)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/orders/"+orderID, nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/cart", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
}

func TestProductsCarryDiscountBadge(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/products/2", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 17, body["discountPercent"])
	assert.EqualValues(t, 249, body["discountPrice"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/products/1", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "discountPercent")

	resp, body = do(t, http.MethodGet, srv.URL+"/api/products", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products, _ := body["products"].([]any)
	badges := 0
	for _, p := range products {
		if _, ok := p.(map[string]any)["discountPercent"]; ok {
			badges++
		}
	}
	assert.Equal(t, 2, badges)
}

func TestValidationAndNotFoundStatuses(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/orders", shop.Customer{Name: "x"}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody, _ := body["error"].(map[string]any)
	assert.EqualValues(t, http.StatusBadRequest, errBody["status"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/products/424242", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/products/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/cart/items/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRequiresCredentials(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/admin/orders", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/orders", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "wrong")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/admin/orders", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["statuses"], len(shop.Statuses))
}

func TestAdminProductLifecycle(t *testing.T) {
	srv, f := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/admin/products", shop.ProductInput{Name: "Cap", Price: 60, Category: "اكسسوارات", Image: "cap.png"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := int64(body["id"].(float64))

	_, err := f.svc.AddToCart(context.Background(), id, "")
	require.NoError(t, err)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/admin/products/"+strconv.FormatInt(id, 10), nil, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.svc.Cart().Items)

	resp, _ = do(t, http.MethodPost, srv.URL+"/admin/products", shop.ProductInput{Name: "No image", Price: 1, Category: "c"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackingDisabledIsForbidden(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, http.MethodPut, srv.URL+"/admin/site-config", shop.SiteConfig{EnableTrackOrder: false}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/orders/1234567", nil, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/home", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	site, _ := body["siteConfig"].(map[string]any)
	assert.Equal(t, false, site["enableTrackOrder"])
}

func TestConnectionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/admin/connection", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "local-only", body["mode"])

	resp, _ = do(t, http.MethodPut, srv.URL+"/admin/connection", map[string]string{"endpoint": "https://x.test"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPut, srv.URL+"/admin/connection", map[string]string{"endpoint": "https://x.test", "access_key": "k"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "local-plus-remote", body["mode"])
	assert.NotContains(t, body, "access_key")

	resp, body = do(t, http.MethodDelete, srv.URL+"/admin/connection", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "local-only", body["mode"])

	resp, body = do(t, http.MethodPost, srv.URL+"/admin/factory-reset", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, shop.DefaultBanner, body["bannerText"])
}

func TestAssistantRoutesWithoutModel(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/assistant/sessions", nil, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["available"])
	id, _ := body["session_id"].(string)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/assistant/sessions/"+id+"/messages", map[string]string{"message": "hi"}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, assistant.UnavailableText, body["reply"])

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/assistant/sessions/"+id, nil, false)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/assistant/sessions/"+id+"/messages", map[string]string{"message": "hi"}, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewAdminAuth(t *testing.T) {
	_, err := NewAdminAuth("", "", "pw")
	assert.Error(t, err)
	_, err = NewAdminAuth("admin", "not-a-hash", "")
	assert.Error(t, err)
	_, err = NewAdminAuth("admin", "", "")
	assert.Error(t, err)

	a, err := NewAdminAuth("admin", "", "plain")
	require.NoError(t, err)
	assert.True(t, a.check("admin", "plain"))
	assert.False(t, a.check("root", "plain"))
}
