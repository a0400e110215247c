package bridge

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/logx"
)

const (
	MessagePath = "/message"
	MetricsPath = "/metrics"
	HealthPath  = "/health"
)

// NewRouter 把 Handler 暴露为 HTTP 通道。
//
// 约束：
// - POST /message 的请求/响应体就是 domain.Request / domain.Result 的 JSON
// - 已处理的消息一律 200（业务失败在 Result 内）；请求体不可解析时 400 + PROCESSING_ERROR
// - gatherer 为 nil 时不挂 /metrics
func NewRouter(h Handler, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	log = logx.OrNop(log)

	r := gin.New()
	r.Use(recovery(log), requestLog(log))

	r.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	local := NewLocal(h)
	r.POST(MessagePath, func(c *gin.Context) {
		var req domain.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, domain.Failure(domain.ErrProcessing, fmt.Sprintf("请求体不合法：%v", err)))
			return
		}
		res, err := local.Send(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, domain.Failure(domain.ErrProcessing, err.Error()))
			return
		}
		c.JSON(http.StatusOK, res)
	})
	return r
}

func requestLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				log.Error("处理 HTTP 请求时发生异常", zap.Any("panic", v), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, domain.Failure(domain.ErrProcessing, fmt.Sprint(v)))
			}
		}()
		c.Next()
	}
}
