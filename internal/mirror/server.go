package mirror

import (
	"bytes"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Server exposes the key/value table with the subset of the PostgREST API the
// storefront uses: bulk select, upsert on the key column, and single-row delete.
type Server struct {
	store     *Store
	accessKey string
	logger    *slog.Logger
}

// NewServer builds a server backed by the provided store and guarded by accessKey.
func NewServer(store *Store, accessKey string, logger *slog.Logger) *Server {
	return &Server{store: store, accessKey: accessKey, logger: logger}
}

// Router wires all mirror routes under a single chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/rest/v1/{table}", func(r chi.Router) {
		r.Use(s.requireAccessKey)
		r.Use(s.requireKnownTable)
		r.Get("/", s.handleSelect)
		r.Post("/", s.handleUpsert)
		r.Delete("/", s.handleDelete)
	})
	return r
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	key, err := keyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	rows, err := s.store.List(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "select: %v", err)
		return
	}
	if sel := strings.TrimSpace(r.URL.Query().Get("select")); sel == "key,value" {
		for i := range rows {
			rows[i].UpdatedAt = nil
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	rows, err := decodeRows(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}
	for _, row := range rows {
		if strings.TrimSpace(row.Key) == "" {
			writeError(w, http.StatusBadRequest, "every row needs a key")
			return
		}
		if len(row.Value) == 0 || !json.Valid(row.Value) {
			writeError(w, http.StatusBadRequest, "row %s: value must be valid json", row.Key)
			return
		}
	}
	if oc := r.URL.Query().Get("on_conflict"); oc != "" && oc != "key" {
		writeError(w, http.StatusBadRequest, "on_conflict only supports the key column")
		return
	}

	prefer := parsePrefer(r.Header.Get("Prefer"))
	merge := prefer["resolution"] == "merge-duplicates"
	if err := s.store.Upsert(r.Context(), rows, merge); err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, http.StatusConflict, "%v", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "upsert: %v", err)
		return
	}
	s.logger.Info("mirror rows upserted", "table", s.store.Table(), "count", len(rows), "merge", merge)

	if prefer["return"] == "representation" {
		writeJSON(w, http.StatusCreated, rows)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := keyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "delete requires a key=eq.<key> filter")
		return
	}
	if err := s.store.Delete(r.Context(), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.logger.Info("mirror row deleted", "table", s.store.Table(), "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAccessKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("apikey"))
		if key == "" {
			key = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing apikey header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.accessKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid access key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireKnownTable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "table") != s.store.Table() {
			writeError(w, http.StatusNotFound, "relation %q does not exist", chi.URLParam(r, "table"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeRows accepts either a single row object or an array of rows.
func decodeRows(r *http.Request) ([]Row, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		return []Row{row}, nil
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func keyFilter(r *http.Request) (string, error) {
	f := r.URL.Query().Get("key")
	if f == "" {
		return "", nil
	}
	if !strings.HasPrefix(f, "eq.") {
		return "", errors.New("only key=eq.<value> filters are supported")
	}
	return strings.TrimPrefix(f, "eq."), nil
}

func parsePrefer(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
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
