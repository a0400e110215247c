package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider 把“远端 API 变化”限制在 provider 包内部；Resolver 只依赖统一接口。
//
// 约束：
// - Search/ParentsGuide 不做缓存、不做重试、不做限速
// - Search 只返回首个匹配的外部 ID；无匹配时返回 ErrNoMatch
// - ParentsGuide 返回原始 JSON（Resolver 原样缓存与转发）
type Provider interface {
	Name() string
	Search(ctx context.Context, titleName string) (externalID string, err error)
	ParentsGuide(ctx context.Context, externalID string) (json.RawMessage, error)
}

const (
	StageSearch = "search"
	StageGuide  = "guide"
)

// ErrNoMatch 表示搜索成功但没有任何结果。
var ErrNoMatch = errors.New("no match")

// ErrEmptyPayload 表示 parentsGuide 返回体为空或为 null。
var ErrEmptyPayload = errors.New("empty payload")

// Error 是 provider 阶段的可追溯错误：上层据此把失败归类为 NOT_FOUND / NO_DATA。
type Error struct {
	Provider string
	Stage    string // StageSearch 或 StageGuide
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Attempt 记录流水线中某一阶段的执行情况（用于日志解释失败原因）。
type Attempt struct {
	Stage      string
	ExternalID string
	Err        error
}

// Lookup 执行 search → extract-id → fetch-advisory 流水线，任一阶段失败即短路。
func Lookup(ctx context.Context, p Provider, titleName string) (data json.RawMessage, externalID string, err error) {
	data, externalID, _, err = LookupTrace(ctx, p, titleName)
	return data, externalID, err
}

// LookupTrace 与 Lookup 相同，但额外返回各阶段的执行轨迹。
func LookupTrace(ctx context.Context, p Provider, titleName string) (data json.RawMessage, externalID string, attempts []Attempt, err error) {
	if p == nil {
		return nil, "", nil, errors.New("provider 不能为空")
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))

	externalID, err = p.Search(ctx, titleName)
	if err == nil && strings.TrimSpace(externalID) == "" {
		err = ErrNoMatch
	}
	attempts = append(attempts, Attempt{Stage: StageSearch, ExternalID: externalID, Err: err})
	if err != nil {
		return nil, "", attempts, &Error{Provider: name, Stage: StageSearch, Err: err}
	}

	data, err = p.ParentsGuide(ctx, externalID)
	attempts = append(attempts, Attempt{Stage: StageGuide, ExternalID: externalID, Err: err})
	if err != nil {
		return nil, externalID, attempts, &Error{Provider: name, Stage: StageGuide, Err: err}
	}
	return data, externalID, attempts, nil
}
