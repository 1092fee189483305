package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "namespaces.db"

// NewSQLiteStore 在 dir 下打开（或创建）namespaces.db，所有命名空间共用一张 entries 表。
func NewSQLiteStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("storage path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	dsn := "file:" + filepath.Join(dir, sqliteFileName) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS namespaces (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			record BLOB NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &sqliteStore{db: db}, nil
}

// sqliteStore 串行化写操作，读操作依赖 WAL 并发执行。
type sqliteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

type sqliteNamespace struct {
	store *sqliteStore
	name  string
}

func (s *sqliteStore) Open(ctx context.Context, name string) (Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO namespaces (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", name, err)
	}
	return &sqliteNamespace{store: s, name: name}, nil
}

func (s *sqliteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, name string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ?`, name); err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (n *sqliteNamespace) Name() string { return n.name }

func (n *sqliteNamespace) Match(ctx context.Context, key string) (*Response, error) {
	var data []byte
	err := n.store.db.QueryRowContext(ctx,
		`SELECT record FROM entries WHERE namespace = ? AND key = ?`, n.name, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_, resp, err := decodeRecord(data)
	return resp, err
}

func (n *sqliteNamespace) Put(ctx context.Context, key string, resp *Response) error {
	data, err := encodeRecord(key, resp)
	if err != nil {
		return err
	}
	n.store.writeMu.Lock()
	defer n.store.writeMu.Unlock()
	_, err = n.store.db.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, record) VALUES (?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET record = excluded.record`,
		n.name, key, data)
	return err
}
