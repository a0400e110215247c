package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/pgguide/internal/bridge"
	"github.com/John-Robertt/pgguide/internal/config"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolver as an HTTP message bridge",
		Long: `serve 把 Resolver 暴露为 HTTP 通道：

  POST /message   getParentalGuide 请求 → 解析结果
  GET  /metrics   Prometheus 指标
  GET  /health    存活检查`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().StringP("listen", "l", "", "监听地址（默认 "+config.DefaultListen+"）")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	eff, err := loadConfig(cmd, func(cli *config.CLIArgs) {
		cli.Listen, _ = cmd.Flags().GetString("listen")
	})
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), eff)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", eff.Listen)
	if err != nil {
		return err
	}
	return serve(ctx, ln, eff, log)
}

// serve 在 ln 上运行 bridge 服务，直到 ctx 结束后优雅退出。
func serve(ctx context.Context, ln net.Listener, eff config.EffectiveConfig, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	res, closeCache, err := buildResolver(eff, reg, log)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn("关闭缓存失败", zap.Error(err))
		}
	}()

	if !eff.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Handler:           bridge.NewRouter(res, reg, log.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("bridge 服务已启动", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("bridge 服务正在退出")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
