package agent

import (
	"time"

	"github.com/John-Robertt/pgguide/internal/domain"
)

// State 是一次编排循环所处的阶段。
type State int

const (
	Idle State = iota
	Detecting
	AwaitingTitleInfo
	RequestingAdvisory
	Rendering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	case AwaitingTitleInfo:
		return "awaiting_title_info"
	case RequestingAdvisory:
		return "requesting_advisory"
	case Rendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// Delays 是编排中的三个定时参数。
type Delays struct {
	Initial  time.Duration // 启动后首次检测
	Debounce time.Duration // 导航触发的去抖窗口
	Retry    time.Duration // 标题尚未就绪时的单次重试
}

func DefaultDelays() Delays {
	return Delays{Initial: 2 * time.Second, Debounce: time.Second, Retry: 2 * time.Second}
}

// Event 是 Agent 消费的页面事件。
type Event interface{ event() }

// EventNavigated 表示页面地址变化。
//
// History=true 对应浏览器 history 导航（只触发去抖检测）；
// 否则视为页面变更观察到的地址变化：清空“已处理 ID”、移除浮层，再去抖检测。
// HTML 非空时先用它替换整份 DOM。
type EventNavigated struct {
	URL     string
	History bool
	HTML    string
}

// EventDismiss 对应浮层关闭按钮。
type EventDismiss struct{}

// EventToggle 对应某个分类的展开/折叠按钮。
type EventToggle struct{ Index int }

func (EventNavigated) event() {}
func (EventDismiss) event()   {}
func (EventToggle) event()    {}

// 内部事件：定时器触发与通道回包。
type trigger struct{ reason string }

type response struct {
	generation uint64
	id         domain.TitleID
	title      string
	result     domain.Result
	panicked   any
}

func (trigger) event()  {}
func (response) event() {}

// Observer 把编排过程中的状态变化从 Agent 中解耦出来（日志、进度输出、测试）。
//
// 约束：回调都在 Agent 的事件循环 goroutine 中同步调用，实现不应阻塞。
type Observer interface {
	OnState(id domain.TitleID, from, to State)
	OnRendered(id domain.TitleID, res domain.Result)
	OnDismissed()
}

type nopObserver struct{}

func (nopObserver) OnState(domain.TitleID, State, State)   {}
func (nopObserver) OnRendered(domain.TitleID, domain.Result) {}
func (nopObserver) OnDismissed()                             {}
