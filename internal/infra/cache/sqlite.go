package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/John-Robertt/pgguide/internal/domain"
)

// SQLiteFile 是 sqlite backend 在缓存目录下使用的文件名。
const SQLiteFile = "pgguide.db"

// SQLiteStore 把条目保存在单表 cache_entries(key, data, timestamp) 中。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）<dir>/pgguide.db。
func OpenSQLite(dir string) (*SQLiteStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("sqlite cache 需要目录")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败：%w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, SQLiteFile)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败：%w", err)
	}
	// SQLite 只支持单写者。
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
		key       TEXT PRIMARY KEY,
		data      BLOB NOT NULL,
		timestamp INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建表失败：%w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	var (
		data []byte
		ts   int64
	)
	err = s.db.QueryRowContext(ctx, `SELECT data, timestamp FROM cache_entries WHERE key = ?`, k).Scan(&data, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	return domain.CacheEntry{Data: data, Timestamp: ts}, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, e domain.CacheEntry) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, data, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp`,
		k, []byte(e.Data), e.Timestamp,
	)
	return err
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, k)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
