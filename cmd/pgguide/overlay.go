package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/agent"
	"github.com/John-Robertt/pgguide/internal/bridge"
	"github.com/John-Robertt/pgguide/internal/config"
	"github.com/John-Robertt/pgguide/internal/infra/fsx"
	"github.com/John-Robertt/pgguide/internal/page"
)

func NewOverlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay <page.html>",
		Short: "Run the page agent on a saved page and print the page with the overlay",
		Long: `overlay 在一份保存下来的页面上运行 Page Agent：识别标题、请求解析结果、
插入浮层，然后输出插入浮层后的完整 HTML。

未指定 --resolver 时使用进程内 Resolver；指定时经 HTTP 发给 "pgguide serve"。

示例：
  pgguide overlay title.html --url https://www.netflix.com/title/81234567
  pgguide overlay title.html --url https://www.netflix.com/title/81234567 --resolver http://127.0.0.1:8787 -o out.html`,
		Args: cobra.ExactArgs(1),
		RunE: runOverlayCmd,
	}
	cmd.Flags().String("url", "", "页面地址（用于识别标题 ID）")
	cmd.Flags().String("resolver", "", "pgguide serve 的地址（默认进程内）")
	cmd.Flags().StringP("out", "o", "", "输出文件（默认 stdout）")
	cmd.Flags().Duration("timeout", 30*time.Second, "等待浮层渲染的最长时间")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runOverlayCmd(cmd *cobra.Command, args []string) error {
	pageURL, _ := cmd.Flags().GetString("url")
	outPath, _ := cmd.Flags().GetString("out")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	eff, err := loadConfig(cmd, func(cli *config.CLIArgs) {
		cli.ResolverURL, _ = cmd.Flags().GetString("resolver")
	})
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), eff)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	doc, err := page.Parse(f, pageURL)
	_ = f.Close()
	if err != nil {
		return err
	}

	m, closeFn, err := newMessenger(eff, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Warn("关闭缓存失败", zap.Error(err))
		}
	}()

	ui := newProgressUI(cmd.ErrOrStderr())
	a := agent.New(doc, m, agent.Delays{
		Initial:  eff.InitialDelay,
		Debounce: eff.DebounceDelay,
		Retry:    eff.RetryDelay,
	}, ui, log.Named("agent"))

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	var waitErr error
	select {
	case <-ui.rendered:
	case <-ui.gaveUp:
		waitErr = errors.New("页面上没有可识别的标题")
	case <-ctx.Done():
		waitErr = fmt.Errorf("等待浮层超时（%s）", timeout)
	}
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if waitErr != nil {
		return waitErr
	}

	html, err := doc.HTML()
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(outPath), filepath.Base(outPath), []byte(html+"\n"))
}

// newMessenger 选择通道：配置了 resolver 地址走 HTTP，否则进程内。
func newMessenger(eff config.EffectiveConfig, log *zap.Logger) (bridge.Messenger, func() error, error) {
	if eff.ResolverURL != "" {
		c, err := bridge.NewClient(eff.ResolverURL, nil)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("使用 HTTP 通道", zap.String("resolver", eff.ResolverURL))
		return c, func() error { return nil }, nil
	}
	res, closeCache, err := buildResolver(eff, nil, log)
	if err != nil {
		return nil, nil, err
	}
	return bridge.NewLocal(res), closeCache, nil
}
