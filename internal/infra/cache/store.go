package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/John-Robertt/pgguide/internal/domain"
)

// Store 是不透明的 key-value 存储：key 为 TitleID，value 为 CacheEntry。
//
// 约束：
// - 只由 Resolver 写入；Set 无条件覆盖
// - 不做过期清扫（过期由 Expiring 在读取时惰性判断）
type Store interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	Set(ctx context.Context, key string, e domain.CacheEntry) error
	Remove(ctx context.Context, key string) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidKey = errors.New("cache: invalid key")

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// cleanKey 做最小约束：避免文件存储的路径穿越。
func cleanKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" || len(k) > 128 || !keyRE.MatchString(k) {
		return "", fmt.Errorf("%w：%q", ErrInvalidKey, k)
	}
	return k, nil
}

// Open 按 backend 名称打开存储。dir 仅对 file/sqlite 有意义。
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return OpenSQLite(dir)
	default:
		return nil, fmt.Errorf("未知 cache backend：%q", backend)
	}
}

// Memory 是进程内存储（测试与一次性命令使用）。
type Memory struct {
	mu sync.Mutex
	m  map[string]domain.CacheEntry
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]domain.CacheEntry)}
}

func (s *Memory) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[k]
	return e, ok, nil
}

func (s *Memory) Set(_ context.Context, key string, e domain.CacheEntry) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = e
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
	return nil
}

func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Memory) Close() error { return nil }
