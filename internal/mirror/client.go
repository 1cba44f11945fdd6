package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RESTClient captures the HTTP calls the storefront issues toward a hosted
// key/value table exposing a PostgREST-style API.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	table      string
}

// NewRESTClient configures a client with the given credentials.
func NewRESTClient(creds Credentials, opts Options) *RESTClient {
	opts = opts.withDefaults()
	return &RESTClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(creds.Endpoint), "/"),
		accessKey:  strings.TrimSpace(creds.AccessKey),
		table:      opts.Table,
	}
}

func (c *RESTClient) tableURL(query url.Values) string {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(c.table))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *RESTClient) authorize(req *http.Request) {
	req.Header.Set("apikey", c.accessKey)
	req.Header.Set("Authorization", "Bearer "+c.accessKey)
}

// FetchAll reads every row of the table into a key -> value mapping.
func (c *RESTClient) FetchAll(ctx context.Context) (map[string]json.RawMessage, error) {
	query := make(url.Values)
	query.Set("select", "key,value")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(query), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rows: mirror responded with %s%s", resp.Status, errorDetail(resp.Body))
	}
	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Upsert inserts or replaces the row identified by key.
func (c *RESTClient) Upsert(ctx context.Context, key string, value json.RawMessage) error {
	body, err := json.Marshal([]Row{{Key: key, Value: value}})
	if err != nil {
		return fmt.Errorf("encode row %s: %w", key, err)
	}
	query := make(url.Values)
	query.Set("on_conflict", "key")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(query), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("upsert %s: mirror responded with %s%s", key, resp.Status, errorDetail(resp.Body))
	}
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func errorDetail(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return ""
	}
	return ": " + msg
}
