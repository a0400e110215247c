package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Robertt/pgguide/internal/domain"
)

// Handler 是 Resolver 一侧对单条消息的处理入口。
type Handler interface {
	Handle(ctx context.Context, req domain.Request) domain.Result
}

// HandlerFunc 允许用普通函数实现 Handler。
type HandlerFunc func(ctx context.Context, req domain.Request) domain.Result

func (f HandlerFunc) Handle(ctx context.Context, req domain.Request) domain.Result {
	return f(ctx, req)
}

// Messenger 是 Page Agent 唯一能接触的跨上下文通道。
//
// 约束：
// - 返回 error 表示通道本身失败（对端不可达、响应不可解析），由调用方转换为 COMM_ERROR
// - 业务失败通过 domain.Result 传递，error 为 nil
type Messenger interface {
	Send(ctx context.Context, req domain.Request) (domain.Result, error)
}

// ErrNoHandler 表示 Local 未绑定处理方。
var ErrNoHandler = errors.New("bridge: 未设置 handler")

// Local 是进程内通道：直接调用 Handler，不经过网络。
type Local struct {
	Handler Handler
}

func NewLocal(h Handler) *Local { return &Local{Handler: h} }

func (l *Local) Send(ctx context.Context, req domain.Request) (res domain.Result, err error) {
	if l == nil || l.Handler == nil {
		return domain.Result{}, ErrNoHandler
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	defer func() {
		if v := recover(); v != nil {
			res, err = domain.Failure(domain.ErrProcessing, fmt.Sprint(v)), nil
		}
	}()
	return l.Handler.Handle(ctx, req), nil
}
