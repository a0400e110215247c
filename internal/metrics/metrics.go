package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolver 汇总解析流程的计数与耗时。nil *Resolver 的所有方法都是 no-op。
type Resolver struct {
	Resolutions *prometheus.CounterVec
	Lookups     *prometheus.HistogramVec
}

// NewResolver 在 reg 上注册指标；reg 为 nil 时使用独立 registry（避免测试重复注册）。
func NewResolver(reg prometheus.Registerer) *Resolver {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Resolver{
		Resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgguide_resolutions_total",
				Help: "Parental guide resolutions by outcome (cached, fetched, or error kind)",
			},
			[]string{"outcome"},
		),
		Lookups: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgguide_remote_lookup_duration_seconds",
				Help:    "Duration of remote API stages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

func (m *Resolver) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Resolver) ObserveLookup(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(stage).Observe(seconds)
}
