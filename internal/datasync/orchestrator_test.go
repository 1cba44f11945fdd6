package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/bazaar-store/internal/dispatch"
	"example.com/bazaar-store/internal/localcache"
	"example.com/bazaar-store/internal/logging"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/mirror/mirrortest"
	"example.com/bazaar-store/internal/secret"
	"example.com/bazaar-store/internal/shop"
	"example.com/bazaar-store/internal/sqliteutil"
)

type harness struct {
	cache      *localcache.Cache
	orch       *Orchestrator
	dispatcher *dispatch.Goroutine
	remote     *mirrortest.Fake

	mu     sync.Mutex
	opened []mirror.Credentials
}

func newHarness(t *testing.T, remote *mirrortest.Fake) *harness {
	t.Helper()
	db, err := sqliteutil.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := localcache.New(db, logging.Discard())
	require.NoError(t, cache.Init(context.Background()))

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	sealer, err := secret.NewSealer(key)
	require.NoError(t, err)

	h := &harness{cache: cache, remote: remote}
	h.dispatcher = dispatch.NewGoroutine(time.Second, logging.Discard())
	factory := func(c mirror.Credentials) (mirror.Mirror, error) {
		h.mu.Lock()
		h.opened = append(h.opened, c)
		h.mu.Unlock()
		if c.Endpoint == "ftp://nope" {
			return nil, errors.New("unsupported scheme")
		}
		return h.remote, nil
	}
	h.orch = New(cache, factory, logging.Discard(), WithDispatcher(h.dispatcher), WithSealer(sealer))
	return h
}

func (h *harness) connect(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.orch.Connect(context.Background(), mirror.Credentials{Endpoint: "https://db.example.test", AccessKey: "anon-key"})
	require.NoError(t, err)
	return snap
}

func TestLoadAllEmptyLocalReturnsDefaults(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.orch.LoadAll(context.Background())

	assert.GreaterOrEqual(t, len(snap.Products), 6)
	assert.LessOrEqual(t, len(snap.Products), 8)
	assert.Empty(t, snap.Orders)
	assert.Empty(t, snap.Cart)
	assert.Equal(t, shop.DefaultBanner, snap.BannerText)
	assert.False(t, snap.PopupConfig.IsActive)
	assert.True(t, snap.SiteConfig.EnableTrackOrder)
	assert.Equal(t, ModeLocalOnly, h.orch.Mode())
	assert.Nil(t, h.orch.Mirror())
}

func TestSaveThenLoadAllReturnsSavedValue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	products := []shop.Product{{ID: 42, Name: "Test Shirt", Price: 100, Category: "c", Image: "i"}}
	orders := []shop.Order{{ID: "1234567", CustomerName: "Sara", TotalAmount: 230, Status: shop.StatusShipped}}
	cart := shop.AddToCart(nil, products[0], "M")

	require.NoError(t, h.orch.SaveProducts(ctx, products))
	require.NoError(t, h.orch.SaveOrders(ctx, orders))
	require.NoError(t, h.orch.SaveReports(ctx, []shop.Report{{ID: "r1", Message: "late"}}))
	require.NoError(t, h.orch.SaveCart(ctx, cart))
	require.NoError(t, h.orch.SaveBanner(ctx, "sale"))
	require.NoError(t, h.orch.SavePopupConfig(ctx, shop.PopupConfig{IsActive: true, Image: "p.png"}))
	require.NoError(t, h.orch.SavePromoConfig(ctx, shop.PromoConfig{IsActive: true, Image: "q.png"}))
	require.NoError(t, h.orch.SaveSiteConfig(ctx, shop.SiteConfig{EnableTrackOrder: false}))

	snap := h.orch.LoadAll(ctx)
	assert.Equal(t, products, snap.Products)
	assert.Equal(t, orders, snap.Orders)
	assert.Equal(t, "late", snap.Reports[0].Message)
	assert.Equal(t, cart, snap.Cart)
	assert.Equal(t, "sale", snap.BannerText)
	assert.Equal(t, shop.PopupConfig{IsActive: true, Image: "p.png"}, snap.PopupConfig)
	assert.Equal(t, shop.PromoConfig{IsActive: true, Image: "q.png"}, snap.PromoConfig)
	assert.False(t, snap.SiteConfig.EnableTrackOrder)
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	require.NoError(t, h.orch.SaveBanner(ctx, "same"))
	first, ok := h.cache.ReadRaw(ctx, KeyBanner)
	require.True(t, ok)
	require.NoError(t, h.orch.SaveBanner(ctx, "same"))
	second, ok := h.cache.ReadRaw(ctx, KeyBanner)
	require.True(t, ok)
	assert.JSONEq(t, string(first), string(second))
}

func TestCorruptLocalValueFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.cache.Write(ctx, KeyProducts, map[string]int{"not": 1}))
	require.NoError(t, h.cache.Write(ctx, KeyBanner, nil))

	snap := h.orch.LoadAll(ctx)
	assert.Equal(t, shop.DefaultProducts(), snap.Products)
	assert.Equal(t, shop.DefaultBanner, snap.BannerText)
}

func TestRemoteSubsetReplacesOnlyPresentKeys(t *testing.T) {
	ctx := context.Background()
	remoteOrders := []shop.Order{{ID: "7654321", CustomerName: "Remote", TotalAmount: 115, Status: shop.StatusPending}}
	ordersJSON, err := json.Marshal(remoteOrders)
	require.NoError(t, err)
	remote := mirrortest.New(map[string]json.RawMessage{
		KeyOrders: ordersJSON,
		KeyBanner: json.RawMessage(`"remote banner"`),
	})
	h := newHarness(t, remote)

	localProducts := []shop.Product{{ID: 1, Name: "Local", Price: 10, Category: "c", Image: "i"}}
	require.NoError(t, h.orch.SaveProducts(ctx, localProducts))
	require.NoError(t, h.orch.SaveBanner(ctx, "local banner"))
	require.NoError(t, h.orch.SaveOrders(ctx, []shop.Order{{ID: "1"}, {ID: "2"}}))

	snap := h.connect(t)
	assert.Equal(t, ModeLocalPlusRemote, h.orch.Mode())
	assert.Equal(t, localProducts, snap.Products)
	assert.Equal(t, "remote banner", snap.BannerText)
	assert.Equal(t, remoteOrders, snap.Orders, "collection is replaced wholesale, not merged")
}

func TestRemoteNullMalformedAndUnknownKeysAreIgnored(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(map[string]json.RawMessage{
		KeyBanner:      json.RawMessage(`null`),
		KeyProducts:    json.RawMessage(`{"oops":true}`),
		KeyPopupConfig: json.RawMessage(`{"isActive":true,"image":"remote.png"}`),
		"legacyThing":  json.RawMessage(`[1,2,3]`),
	})
	h := newHarness(t, remote)
	require.NoError(t, h.orch.SaveBanner(ctx, "kept"))

	snap := h.connect(t)
	assert.Equal(t, "kept", snap.BannerText)
	assert.Equal(t, shop.DefaultProducts(), snap.Products)
	assert.True(t, snap.PopupConfig.IsActive)
	assert.Equal(t, "remote.png", snap.PopupConfig.Image)
}

func TestRemoteFetchFailureKeepsLocalAndMode(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(nil)
	remote.FetchErr = errors.New("401 unauthorized")
	h := newHarness(t, remote)
	require.NoError(t, h.orch.SaveBanner(ctx, "local"))

	snap := h.connect(t)
	assert.Equal(t, "local", snap.BannerText)
	assert.Equal(t, ModeLocalPlusRemote, h.orch.Mode())
}

func TestSavePushesToRemoteAndIgnoresRemoteFailure(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(nil)
	h := newHarness(t, remote)
	h.connect(t)

	require.NoError(t, h.orch.SaveBanner(ctx, "pushed"))
	h.dispatcher.Wait()
	row, ok := remote.Row(KeyBanner)
	require.True(t, ok)
	assert.JSONEq(t, `"pushed"`, string(row))

	remote.UpsertErr = errors.New("network down")
	require.NoError(t, h.orch.SaveBanner(ctx, "local only"))
	h.dispatcher.Wait()

	var local string
	require.True(t, h.cache.Read(ctx, KeyBanner, &local))
	assert.Equal(t, "local only", local)
	assert.Equal(t, []string{KeyBanner, KeyBanner}, remote.Upserts())

	// The remote kept the older value and wins on the next load.
	assert.Equal(t, "pushed", h.orch.LoadAll(ctx).BannerText)
}

func TestSaveInLocalOnlyModeDoesNotDispatch(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(nil)
	h := newHarness(t, remote)

	require.NoError(t, h.orch.SaveBanner(ctx, "quiet"))
	h.dispatcher.Wait()
	assert.Empty(t, remote.Upserts())
}

func TestConnectSealsAccessKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mirrortest.New(nil))
	h.connect(t)

	var stored string
	require.True(t, h.cache.Read(ctx, KeyMirrorAccessKey, &stored))
	assert.True(t, secret.IsSealed(stored))
	assert.NotContains(t, stored, "anon-key")

	h.mu.Lock()
	last := h.opened[len(h.opened)-1]
	h.mu.Unlock()
	assert.Equal(t, "anon-key", last.AccessKey)

	conn := h.orch.Connection()
	assert.Equal(t, ModeLocalPlusRemote, conn.Mode)
	assert.Equal(t, "https://db.example.test", conn.Endpoint)
	assert.True(t, conn.Active)
}

func TestConnectRejectsIncompleteOrUnbuildableCredentials(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mirrortest.New(nil))

	_, err := h.orch.Connect(ctx, mirror.Credentials{Endpoint: "https://x"})
	assert.ErrorIs(t, err, shop.ErrValidation)

	_, err = h.orch.Connect(ctx, mirror.Credentials{Endpoint: "ftp://nope", AccessKey: "k"})
	assert.ErrorIs(t, err, shop.ErrValidation)

	keys, err := h.cache.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, ModeLocalOnly, h.orch.Mode())
}

func TestDisconnectReturnsToLocalOnly(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(map[string]json.RawMessage{KeyBanner: json.RawMessage(`"remote"`)})
	h := newHarness(t, remote)
	h.connect(t)

	snap, err := h.orch.Disconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeLocalOnly, h.orch.Mode())
	assert.Equal(t, shop.DefaultBanner, snap.BannerText)
	assert.True(t, remote.Closed())
	assert.Nil(t, h.orch.Mirror())
}

func TestFactoryResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	remote := mirrortest.New(nil)
	h := newHarness(t, remote)
	h.connect(t)
	require.NoError(t, h.orch.SaveBanner(ctx, "custom"))
	require.NoError(t, h.orch.SaveOrders(ctx, []shop.Order{{ID: "1"}}))
	h.dispatcher.Wait()

	snap, err := h.orch.FactoryReset(ctx)
	require.NoError(t, err)

	keys, err := h.cache.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, ModeLocalOnly, h.orch.Mode())

	defaults := Defaults()
	assert.Equal(t, defaults, snap)

	_, ok := remote.Row(KeyBanner)
	assert.True(t, ok, "remote rows survive a factory reset")
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	snap := Defaults()
	snap.Cart = shop.AddToCart(nil, snap.Products[0], "")
	clone := snap.Clone()
	clone.Products[0].Name = "changed"
	clone.Cart[0].Quantity = 9

	assert.NotEqual(t, "changed", snap.Products[0].Name)
	assert.Equal(t, 1, snap.Cart[0].Quantity)
}
