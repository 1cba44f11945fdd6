package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"example.com/bazaar-store/internal/dispatch"
	"example.com/bazaar-store/internal/localcache"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/secret"
	"example.com/bazaar-store/internal/shop"
)

// Mode is derived from the stored credentials on every LoadAll.
type Mode string

const (
	ModeLocalOnly       Mode = "local-only"
	ModeLocalPlusRemote Mode = "local-plus-remote"
)

// MirrorFactory builds a fresh mirror for a set of credentials.
type MirrorFactory func(mirror.Credentials) (mirror.Mirror, error)

// Dispatcher hands a remote write off without the caller waiting for it.
type Dispatcher interface {
	Dispatch(m mirror.Mirror, key string, value json.RawMessage)
}

// Connection describes the remote side without exposing the access key.
type Connection struct {
	Mode     Mode   `json:"mode"`
	Endpoint string `json:"endpoint,omitempty"`
	Active   bool   `json:"active"`
}

// Orchestrator mediates every read and write between the session state, the
// local cache and the optional remote mirror.
type Orchestrator struct {
	cache      *localcache.Cache
	open       MirrorFactory
	sealer     *secret.Sealer
	dispatcher Dispatcher
	logger     *slog.Logger

	mu     sync.RWMutex
	creds  mirror.Credentials
	mirror mirror.Mirror
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithDispatcher replaces the default goroutine dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithSealer seals the stored access key at rest.
func WithSealer(s *secret.Sealer) Option {
	return func(o *Orchestrator) { o.sealer = s }
}

// New wires an orchestrator. A nil factory falls back to mirror.Open with
// default options.
func New(cache *localcache.Cache, open MirrorFactory, logger *slog.Logger, opts ...Option) *Orchestrator {
	if open == nil {
		open = func(c mirror.Credentials) (mirror.Mirror, error) { return mirror.Open(c, mirror.Options{}) }
	}
	o := &Orchestrator{
		cache:  cache,
		open:   open,
		logger: logger.With("component", "datasync"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.NewGoroutine(10*time.Second, logger)
	}
	if o.sealer == nil {
		o.logger.Warn("no sealing key configured, access key will be stored in plain text")
	}
	return o
}

// LoadAll builds the session snapshot: local baseline first, then every key
// the remote returns replaces its baseline wholesale.
func (o *Orchestrator) LoadAll(ctx context.Context) Snapshot {
	snap := o.baseline(ctx)

	m := o.reconnect(ctx)
	if m == nil {
		return snap
	}
	remote, err := m.FetchAll(ctx)
	if err != nil {
		o.logger.Warn("remote fetch failed, using local data", "error", err)
		return snap
	}
	o.merge(&snap, remote)
	return snap
}

func (o *Orchestrator) baseline(ctx context.Context) Snapshot {
	snap := Defaults()
	for _, key := range DataKeys {
		raw, ok := o.cache.ReadRaw(ctx, key)
		if !ok {
			continue
		}
		if _, err := snap.apply(key, raw); err != nil {
			o.logger.Warn("local value has wrong shape, using default", "key", key, "error", err)
		}
	}
	return snap
}

func (o *Orchestrator) merge(snap *Snapshot, remote map[string]json.RawMessage) {
	replaced := 0
	for _, key := range DataKeys {
		raw, ok := remote[key]
		if !ok {
			continue
		}
		changed, err := snap.apply(key, raw)
		if err != nil {
			o.logger.Warn("remote value has wrong shape, keeping local", "key", key, "error", err)
			continue
		}
		if changed {
			replaced++
		}
	}
	o.logger.Debug("remote merge applied", "remote_keys", len(remote), "replaced", replaced)
}

// reconnect re-derives the mode from the stored credentials and builds a new
// mirror when they are present. The previous mirror is always released.
func (o *Orchestrator) reconnect(ctx context.Context) mirror.Mirror {
	creds := o.storedCredentials(ctx)

	var next mirror.Mirror
	if creds.Configured() {
		m, err := o.open(creds)
		if err != nil {
			o.logger.Error("build mirror failed", "endpoint", creds.Endpoint, "error", err)
		} else {
			next = m
		}
	}

	o.mu.Lock()
	prev := o.mirror
	o.creds = creds
	o.mirror = next
	o.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			o.logger.Debug("close previous mirror", "error", err)
		}
	}
	return next
}

func (o *Orchestrator) storedCredentials(ctx context.Context) mirror.Credentials {
	var creds mirror.Credentials
	o.cache.Read(ctx, KeyMirrorEndpoint, &creds.Endpoint)
	var stored string
	if !o.cache.Read(ctx, KeyMirrorAccessKey, &stored) || stored == "" {
		return creds
	}
	if secret.IsSealed(stored) {
		if o.sealer == nil {
			o.logger.Error("access key is sealed but no sealing key is configured")
			return mirror.Credentials{Endpoint: creds.Endpoint}
		}
		key, err := o.sealer.Open(stored)
		if err != nil {
			o.logger.Error("unseal access key failed", "error", err)
			return mirror.Credentials{Endpoint: creds.Endpoint}
		}
		stored = key
	}
	creds.AccessKey = stored
	return creds
}

// Save writes value under key locally, then hands the same payload to the
// dispatcher for the remote. Only the local write can fail the call.
func (o *Orchestrator) Save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := o.cache.WriteRaw(ctx, key, payload); err != nil {
		return err
	}
	o.push(key, payload)
	return nil
}

func (o *Orchestrator) push(key string, payload json.RawMessage) {
	o.mu.RLock()
	m := o.mirror
	o.mu.RUnlock()
	if m == nil {
		return
	}
	o.dispatcher.Dispatch(m, key, payload)
}

func (o *Orchestrator) SaveProducts(ctx context.Context, v []shop.Product) error {
	return o.Save(ctx, KeyProducts, v)
}

func (o *Orchestrator) SaveOrders(ctx context.Context, v []shop.Order) error {
	return o.Save(ctx, KeyOrders, v)
}

func (o *Orchestrator) SaveReports(ctx context.Context, v []shop.Report) error {
	return o.Save(ctx, KeyReports, v)
}

func (o *Orchestrator) SaveCart(ctx context.Context, v []shop.CartItem) error {
	return o.Save(ctx, KeyCart, v)
}

func (o *Orchestrator) SaveBanner(ctx context.Context, v string) error {
	return o.Save(ctx, KeyBanner, v)
}

func (o *Orchestrator) SavePopupConfig(ctx context.Context, v shop.PopupConfig) error {
	return o.Save(ctx, KeyPopupConfig, v)
}

func (o *Orchestrator) SavePromoConfig(ctx context.Context, v shop.PromoConfig) error {
	return o.Save(ctx, KeyPromoConfig, v)
}

func (o *Orchestrator) SaveSiteConfig(ctx context.Context, v shop.SiteConfig) error {
	return o.Save(ctx, KeySiteConfig, v)
}

// Connect stores new credentials and reloads so the mode is derived from
// scratch. Credentials the factory cannot build a mirror from are rejected
// before anything is stored.
func (o *Orchestrator) Connect(ctx context.Context, creds mirror.Credentials) (Snapshot, error) {
	creds.Endpoint = strings.TrimSpace(creds.Endpoint)
	creds.AccessKey = strings.TrimSpace(creds.AccessKey)
	if !creds.Configured() {
		return Snapshot{}, fmt.Errorf("%w: endpoint and access key are required", shop.ErrValidation)
	}
	probe, err := o.open(creds)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", shop.ErrValidation, err)
	}
	_ = probe.Close()

	stored := creds.AccessKey
	if o.sealer != nil {
		if stored, err = o.sealer.Seal(creds.AccessKey); err != nil {
			return Snapshot{}, fmt.Errorf("seal access key: %w", err)
		}
	}
	if err := o.cache.Write(ctx, KeyMirrorEndpoint, creds.Endpoint); err != nil {
		return Snapshot{}, err
	}
	if err := o.cache.Write(ctx, KeyMirrorAccessKey, stored); err != nil {
		return Snapshot{}, err
	}
	o.logger.Info("remote mirror connected", "endpoint", creds.Endpoint)
	return o.LoadAll(ctx), nil
}

// Disconnect forgets the credentials and reloads in local-only mode.
func (o *Orchestrator) Disconnect(ctx context.Context) (Snapshot, error) {
	for _, key := range []string{KeyMirrorEndpoint, KeyMirrorAccessKey} {
		if err := o.cache.Delete(ctx, key); err != nil {
			return Snapshot{}, err
		}
	}
	o.logger.Info("remote mirror disconnected")
	return o.LoadAll(ctx), nil
}

// FactoryReset wipes every local key, credentials included, and reloads to
// the built-in defaults. Remote rows are left alone.
func (o *Orchestrator) FactoryReset(ctx context.Context) (Snapshot, error) {
	if err := o.cache.Clear(ctx); err != nil {
		return Snapshot{}, err
	}
	o.logger.Info("factory reset")
	return o.LoadAll(ctx), nil
}

// Mode reports the mode derived by the last LoadAll.
func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.creds.Configured() {
		return ModeLocalPlusRemote
	}
	return ModeLocalOnly
}

// Connection reports the endpoint and mode.
func (o *Orchestrator) Connection() Connection {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c := Connection{Mode: ModeLocalOnly, Endpoint: o.creds.Endpoint, Active: o.mirror != nil}
	if o.creds.Configured() {
		c.Mode = ModeLocalPlusRemote
	}
	return c
}

// Mirror returns the current mirror, or nil in local-only mode. The Temporal
// dispatcher resolves it at activity time.
func (o *Orchestrator) Mirror() mirror.Mirror {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mirror
}

// Close releases the current mirror.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	m := o.mirror
	o.mirror = nil
	o.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close()
}
