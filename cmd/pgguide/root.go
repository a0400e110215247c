package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/config"
	"github.com/John-Robertt/pgguide/internal/logx"
)

// NewRootCmd 构造根命令。
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pgguide",
		Short: "IMDb parental guide overlay for streaming title pages",
		Long: `pgguide 识别页面上正在浏览的标题，经 api.imdbapi.dev 解析出家长指引数据，
并把它渲染为可展开的浮层插入页面。

配置来源（优先级从高到低）：命令行参数 > pgguide.yaml > PGGUIDE_* 环境变量 > 内置默认。`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "配置文件路径（默认读取 ./pgguide.yaml，可选）")
	pf.BoolP("verbose", "v", false, "输出 debug 日志")
	pf.String("api-base-url", "", "远端 API 地址（默认 "+config.DefaultAPIBaseURL+"）")
	pf.String("proxy", "", "HTTP 代理地址")
	pf.String("cache-backend", "", "缓存后端：memory|file|sqlite")
	pf.String("cache-dir", "", "file/sqlite 缓存目录")
	pf.String("log-level", "", "日志级别：debug|info|warn|error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewOverlayCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

// Execute 运行根命令。
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 把全局参数与子命令参数合并为 EffectiveConfig。
func loadConfig(cmd *cobra.Command, extra func(*config.CLIArgs)) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}

	flags := cmd.Flags()
	str := func(name string) string {
		v, _ := flags.GetString(name)
		return v
	}
	verbose, _ := flags.GetBool("verbose")

	cli := config.CLIArgs{
		ConfigPath:   str("config"),
		APIBaseURL:   str("api-base-url"),
		ProxyURL:     str("proxy"),
		CacheBackend: str("cache-backend"),
		CacheDir:     str("cache-dir"),
		LogLevel:     str("log-level"),
		Verbose:      verbose,
	}
	if extra != nil {
		extra(&cli)
	}
	return config.LoadEffective(cwd, cli)
}

// newLogger 按配置构造 logger；日志只写 stderr。
func newLogger(w io.Writer, eff config.EffectiveConfig) (*zap.Logger, error) {
	return logx.New(w, logx.Config{Level: eff.LogLevel, Development: eff.LogDevelopment})
}
