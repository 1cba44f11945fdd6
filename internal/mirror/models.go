package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTable is the name of the generic two-column table.
const DefaultTable = "store_data"

// Credentials are the two secrets entered through the admin settings form.
type Credentials struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
}

// Configured reports whether both secrets are present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.AccessKey) != ""
}

// Row is a single key/value pair as it travels over the wire.
type Row struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// Mirror is the remote side of the sync: one bulk read and one single-row
// insert-or-replace.
type Mirror interface {
	FetchAll(ctx context.Context) (map[string]json.RawMessage, error)
	Upsert(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}

// Options tune the clients Open builds.
type Options struct {
	Table   string
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Table) == "" {
		o.Table = DefaultTable
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return o
}

// Open constructs a mirror for the endpoint's scheme: http(s) endpoints get
// the REST client, postgres endpoints a direct SQL table.
func Open(creds Credentials, opts Options) (Mirror, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("mirror: endpoint and access key are required")
	}
	opts = opts.withDefaults()
	u, err := url.Parse(strings.TrimSpace(creds.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("mirror: parse endpoint: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewRESTClient(creds, opts), nil
	case "postgres", "postgresql":
		return OpenSQLTable(creds, opts)
	default:
		return nil, fmt.Errorf("mirror: unsupported endpoint scheme %q", u.Scheme)
	}
}
