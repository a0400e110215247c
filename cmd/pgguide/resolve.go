package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/domain"
)

func NewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id> <title>",
		Short: "Resolve one title and print the result as JSON",
		Long: `resolve 对单个标题执行一次解析（缓存 → 搜索 → parentsGuide），
stdout 只输出一个 JSON 结果（形如 {"success":true,"data":{...},"cached":false}）。

示例：
  pgguide resolve 81234567 "Example Movie" --year 2020`,
		Args: cobra.ExactArgs(2),
		RunE: runResolveCmd,
	}
	cmd.Flags().String("year", "", "发行年份（只用于日志）")
	return cmd
}

func runResolveCmd(cmd *cobra.Command, args []string) error {
	id, ok := domain.ParseTitleID(args[0])
	if !ok {
		return fmt.Errorf("id 只能由字母、数字、_ 和 - 组成：%q", args[0])
	}
	year, _ := cmd.Flags().GetString("year")

	eff, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), eff)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	res, closeCache, err := buildResolver(eff, nil, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn("关闭缓存失败", zap.Error(err))
		}
	}()

	out := res.Resolve(cmd.Context(), id, args[1], year)
	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%s：%s", out.Error, out.Message)
	}
	return nil
}
