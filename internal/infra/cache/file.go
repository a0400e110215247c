package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/infra/fsx"
)

// FileStore 把每个条目保存为 <root>/<key>.json（原子替换写入）。
type FileStore struct {
	Root string
}

func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("file cache 需要目录")
	}
	return &FileStore{Root: filepath.Clean(root)}, nil
}

func (s *FileStore) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, k+".json"), nil
}

func (s *FileStore) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	b, ok, err := fsx.ReadFile(p)
	if err != nil || !ok {
		return domain.CacheEntry{}, false, err
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.CacheEntry{}, false, err
	}
	return e, true, nil
}

func (s *FileStore) Set(_ context.Context, key string, e domain.CacheEntry) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(s.Root, k+".json", b)
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return fsx.Remove(p)
}

func (s *FileStore) Close() error { return nil }
