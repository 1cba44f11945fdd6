package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	_ "github.com/lib/pq" // postgres driver for direct table mirrors
)

// Dialect decides how positional parameters are written.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) param(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLTable talks to the key/value table directly over database/sql. The table
// must already exist with a unique key column.
type SQLTable struct {
	db      *sql.DB
	table   string
	dialect Dialect
	ownsDB  bool
}

// NewSQLTable wraps an existing handle. The caller keeps ownership of db.
func NewSQLTable(db *sql.DB, table string, dialect Dialect) (*SQLTable, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("mirror: invalid table name %q", table)
	}
	return &SQLTable{db: db, table: table, dialect: dialect}, nil
}

// OpenSQLTable connects to a postgres endpoint. The access key becomes the
// connection password unless the URL already carries one.
func OpenSQLTable(creds Credentials, opts Options) (*SQLTable, error) {
	opts = opts.withDefaults()
	dsn, err := postgresDSN(creds)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("mirror: open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(opts.Timeout * 6)
	t, err := NewSQLTable(db, opts.Table, DialectPostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	t.ownsDB = true
	return t, nil
}

func postgresDSN(creds Credentials) (string, error) {
	u, err := url.Parse(strings.TrimSpace(creds.Endpoint))
	if err != nil {
		return "", fmt.Errorf("mirror: parse endpoint: %w", err)
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		user := "postgres"
		if u.User != nil && u.User.Username() != "" {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, strings.TrimSpace(creds.AccessKey))
	}
	return u.String(), nil
}

// FetchAll selects every row.
func (t *SQLTable) FetchAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT key, value FROM %s`, t.table))
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer rows.Close()
	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter rows: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces one row.
func (t *SQLTable) Upsert(ctx context.Context, key string, value json.RawMessage) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s(key, value) VALUES(%s, %s)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		t.table, t.dialect.param(1), t.dialect.param(2),
	)
	if _, err := t.db.ExecContext(ctx, stmt, key, string(value)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Close closes the connection pool when this table opened it.
func (t *SQLTable) Close() error {
	if !t.ownsDB {
		return nil
	}
	return t.db.Close()
}
