package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/infra/cache"
	"github.com/John-Robertt/pgguide/internal/logx"
	"github.com/John-Robertt/pgguide/internal/metrics"
	"github.com/John-Robertt/pgguide/internal/provider"
)

const (
	MsgNotFound = "Title not found in IMDb database"
	MsgNoData   = "Could not fetch parental guide data"
)

// Resolver 是唯一拥有网络访问与缓存写权限的组件。
//
// 约束：
// - 不接触页面状态
// - 远端调用失败全部在本地转换为 Failure，不向上传播、不重试
type Resolver struct {
	Provider provider.Provider
	Cache    *cache.Expiring
	Metrics  *metrics.Resolver
	Log      *zap.Logger
}

func New(p provider.Provider, c *cache.Expiring, m *metrics.Resolver, log *zap.Logger) *Resolver {
	return &Resolver{Provider: p, Cache: c, Metrics: m, Log: logx.OrNop(log)}
}

// Resolve 返回缓存中的 parentsGuide，或执行两步远端查询并写入缓存。
//
// year 只用于日志，不参与消歧（已知的不精确点）。
func (r *Resolver) Resolve(ctx context.Context, id domain.TitleID, titleName, year string) domain.Result {
	log := logx.OrNop(r.Log).With(zap.String("id", string(id)))
	log.Debug("处理请求", zap.String("title", titleName), zap.String("year", yearOrUnknown(year)))

	if r.Cache != nil {
		if data, ok := r.Cache.Lookup(ctx, id); ok {
			log.Debug("返回缓存数据")
			r.Metrics.Outcome("cached")
			return domain.Success(data, true)
		}
	}

	started := time.Now()
	data, externalID, attempts, err := provider.LookupTrace(ctx, r.Provider, titleName)
	r.Metrics.ObserveLookup(lastStage(attempts), time.Since(started).Seconds())
	if err != nil {
		res := classify(err)
		log.Warn("远端查询失败",
			zap.String("error_kind", string(res.Error)),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
		r.Metrics.Outcome(string(res.Error))
		return res
	}

	log.Debug("已获取 parentsGuide", zap.String("external_id", externalID), zap.Int("bytes", len(data)))
	if r.Cache != nil {
		r.Cache.Put(ctx, id, data)
	}
	r.Metrics.Outcome("fetched")
	return domain.Success(data, false)
}

// Handle 处理一条跨上下文消息；处理中的 panic 被转换为 PROCESSING_ERROR。
func (r *Resolver) Handle(ctx context.Context, req domain.Request) (res domain.Result) {
	defer func() {
		if v := recover(); v != nil {
			logx.OrNop(r.Log).Error("处理消息时发生异常", zap.Any("panic", v))
			r.Metrics.Outcome(string(domain.ErrProcessing))
			res = domain.Failure(domain.ErrProcessing, fmt.Sprint(v))
		}
	}()

	q, err := req.Query()
	if err != nil {
		r.Metrics.Outcome(string(domain.ErrProcessing))
		return domain.Failure(domain.ErrProcessing, err.Error())
	}
	return r.Resolve(ctx, q.ID, q.TitleName, q.Year)
}

func classify(err error) domain.Result {
	var pe *provider.Error
	if errors.As(err, &pe) && pe.Stage == provider.StageGuide {
		return domain.Failure(domain.ErrNoData, MsgNoData)
	}
	// search 阶段的任何失败（无结果、HTTP、传输、JSON）都视为无法解析标题。
	return domain.Failure(domain.ErrNotFound, MsgNotFound)
}

func lastStage(attempts []provider.Attempt) string {
	if len(attempts) == 0 {
		return "none"
	}
	return attempts[len(attempts)-1].Stage
}

func yearOrUnknown(y string) string {
	if strings.TrimSpace(y) == "" {
		return "unknown"
	}
	return y
}
