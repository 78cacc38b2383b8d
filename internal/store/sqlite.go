package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite database at the given path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers; pragmas then apply to every statement.
	db.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var _ KV = (*SQLite)(nil)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite is a KV backend storing one keyspace per table.
type SQLite struct {
	db    *sql.DB
	table string
}

// NewSQLite creates a SQLite-backed keyspace and initialises its table.
func NewSQLite(db *sql.DB, table string) (*SQLite, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &SQLite{db: db, table: "kv_" + table}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	// seq preserves insertion order; upserts keep the row and therefore its position.
	_, err := s.db.Exec(fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		seq     INTEGER PRIMARY KEY AUTOINCREMENT,
		id      TEXT NOT NULL UNIQUE,
		payload BLOB NOT NULL
	)`, s.table))
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := sq.Select("payload").From(s.table).Where(sq.Eq{"id": key}).ToSql()
	if err != nil {
		return nil, err
	}
	var v []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	query, args, err := sq.Insert(s.table).
		Columns("id", "payload").
		Values(key, value).
		Suffix("ON CONFLICT(id) DO UPDATE SET payload = excluded.payload").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLite) PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	query, args, err := sq.Insert(s.table).
		Columns("id", "payload").
		Values(key, value).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		return value, true, nil
	}
	cur, err := s.Get(ctx, key)
	return cur, false, err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(s.table).Where(sq.Eq{"id": key}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, offset, limit int) ([]Entry, int, error) {
	var total int
	countQuery, _, err := sq.Select("COUNT(*)").From(s.table).ToSql()
	if err != nil {
		return nil, 0, err
	}
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	lo, hi := window(offset, limit, total)
	if lo == hi {
		return []Entry{}, total, nil
	}
	query, args, err := sq.Select("id", "payload").
		From(s.table).
		OrderBy("seq ASC").
		Limit(uint64(hi - lo)).
		Offset(uint64(lo)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Entry, 0, hi-lo)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
