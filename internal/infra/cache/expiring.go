package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/logx"
)

// DefaultTTL 是固定的缓存有效期。
const DefaultTTL = 24 * time.Hour

// Expiring 在 Store 之上实现“读取时惰性过期”。
//
// 约束：
// - 读取命中但已过期：先删除，再返回未命中
// - 存储层错误不向上传播：读失败按未命中处理，写失败只记日志
type Expiring struct {
	Store Store
	TTL   time.Duration
	Now   func() time.Time
	Log   *zap.Logger
}

func NewExpiring(s Store, ttl time.Duration, log *zap.Logger) *Expiring {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Expiring{Store: s, TTL: ttl, Now: time.Now, Log: logx.OrNop(log)}
}

func (c *Expiring) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Lookup 返回未过期的缓存数据。
func (c *Expiring) Lookup(ctx context.Context, id domain.TitleID) (json.RawMessage, bool) {
	log := logx.OrNop(c.Log)
	e, ok, err := c.Store.Get(ctx, string(id))
	if err != nil {
		log.Warn("读取缓存失败，按未命中处理", zap.String("id", string(id)), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if e.Expired(c.now(), c.TTL) {
		log.Debug("缓存已过期，删除", zap.String("id", string(id)), zap.Duration("age", e.Age(c.now())))
		if err := c.Store.Remove(ctx, string(id)); err != nil {
			log.Warn("删除过期缓存失败", zap.String("id", string(id)), zap.Error(err))
		}
		return nil, false
	}
	return e.Data, true
}

// Put 以当前时间写入（无条件覆盖）。
func (c *Expiring) Put(ctx context.Context, id domain.TitleID, data json.RawMessage) {
	if err := c.Store.Set(ctx, string(id), domain.NewCacheEntry(data, c.now())); err != nil {
		logx.OrNop(c.Log).Warn("写入缓存失败", zap.String("id", string(id)), zap.Error(err))
	}
}
