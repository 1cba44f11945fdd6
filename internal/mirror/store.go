package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/bazaar-store/internal/sqliteutil"
)

// ErrConflict is returned by Insert when the key already exists.
var ErrConflict = errors.New("duplicate key")

// Store contains the mirror server's persistence logic.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore wires a mirror data store backed by SQLite.
func NewStore(db *sql.DB, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

// Table returns the served table name.
func (s *Store) Table() string { return s.table }

// Init creates the key/value table.
func (s *Store) Init(ctx context.Context) error {
	return sqliteutil.Migrate(ctx, s.db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`, s.table),
	)
}

// List returns every row, or only the row for key when key is non-empty.
func (s *Store) List(ctx context.Context, key string) ([]Row, error) {
	query := fmt.Sprintf(`SELECT key, value, updated_at FROM %s`, s.table)
	var args []any
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()
	out := make([]Row, 0)
	for rows.Next() {
		var (
			r       Row
			value   string
			updated time.Time
		)
		if err := rows.Scan(&r.Key, &value, &updated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Value = json.RawMessage(value)
		r.UpdatedAt = &updated
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter rows: %w", err)
	}
	return out, nil
}

// Upsert writes rows, replacing existing keys when merge is true and failing
// with ErrConflict otherwise. All rows are applied or none.
func (s *Store) Upsert(ctx context.Context, rows []Row, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s(key, value, updated_at) VALUES(?, ?, ?)`, s.table)
	if merge {
		stmt += ` ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	} else {
		stmt += ` ON CONFLICT(key) DO NOTHING`
	}
	now := time.Now().UTC()
	for _, r := range rows {
		res, err := tx.ExecContext(ctx, stmt, r.Key, string(r.Value), now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.Key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 && !merge {
			return fmt.Errorf("%w: %s", ErrConflict, r.Key)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes one row.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
