package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/config"
	"github.com/John-Robertt/pgguide/internal/infra/cache"
	"github.com/John-Robertt/pgguide/internal/infra/httpx"
	"github.com/John-Robertt/pgguide/internal/metrics"
	"github.com/John-Robertt/pgguide/internal/provider/imdbapi"
	"github.com/John-Robertt/pgguide/internal/resolver"
)

// buildResolver 组装 Resolver：HTTP client → imdbapi provider → 缓存 → 指标。
// 返回的 close 负责释放缓存存储。
func buildResolver(eff config.EffectiveConfig, reg prometheus.Registerer, log *zap.Logger) (*resolver.Resolver, func() error, error) {
	hc, err := httpx.NewAPIClient(eff.ProxyURL)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 HTTP client 失败：%w", err)
	}
	store, err := cache.Open(eff.CacheBackend, eff.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("打开缓存失败：%w", err)
	}
	log.Debug("resolver 已就绪",
		zap.String("api", eff.APIBaseURL),
		zap.String("cache_backend", eff.CacheBackend),
		zap.String("cache_dir", eff.CacheDir),
		zap.Duration("cache_ttl", cache.DefaultTTL),
	)
	r := resolver.New(
		imdbapi.New(eff.APIBaseURL, hc),
		cache.NewExpiring(store, cache.DefaultTTL, log.Named("cache")),
		metrics.NewResolver(reg),
		log.Named("resolver"),
	)
	return r, store.Close, nil
}
