package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/pgguide/internal/bridge"
	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/logx"
	"github.com/John-Robertt/pgguide/internal/overlay"
	"github.com/John-Robertt/pgguide/internal/page"
)

// ErrAlreadyRunning 表示同一个 Agent 被重复 Run。
var ErrAlreadyRunning = errors.New("agent 已在运行")

// Agent 是页面一侧的编排器：识别标题、经 bridge 请求解析结果、渲染浮层。
//
// 约束：
// - 不做任何网络访问；唯一的外部通道是 Bridge
// - 编排上下文（state/lastID/overlay/processing/generation）只在事件循环 goroutine 中读写
// - processing 期间到达的触发直接丢弃
// - 每个循环记录 generation；导航使其递增，过期回包被丢弃、其 id 不再视为已处理，并重新去抖检测
type Agent struct {
	Page     *page.Document
	Bridge   bridge.Messenger
	Delays   Delays
	Observer Observer
	Log      *zap.Logger

	events chan Event
	done   chan struct{}
	once   sync.Once
	ctx    context.Context

	state      State
	lastID     domain.TitleID
	lastURL    string
	retried    domain.TitleID
	overlay    *page.Overlay
	processing bool
	generation uint64

	debounce *time.Timer
	retry    *time.Timer
}

func New(doc *page.Document, m bridge.Messenger, d Delays, obs Observer, log *zap.Logger) *Agent {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Agent{
		Page:     doc,
		Bridge:   m,
		Delays:   d,
		Observer: obs,
		Log:      logx.OrNop(log),
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Post 把页面事件交给事件循环；Agent 已停止时直接丢弃。
func (a *Agent) Post(ev Event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// Run 启动事件循环，直到 ctx 结束。首次检测在 Delays.Initial 之后触发。
func (a *Agent) Run(ctx context.Context) error {
	started := false
	a.once.Do(func() { started = true })
	if !started {
		return ErrAlreadyRunning
	}
	if a.Page == nil || a.Bridge == nil {
		return errors.New("agent: Page 与 Bridge 不能为空")
	}
	if a.Observer == nil {
		a.Observer = nopObserver{}
	}
	a.Log = logx.OrNop(a.Log)
	a.ctx = ctx
	a.lastURL = a.Page.URL()
	defer close(a.done)
	defer a.stopTimers()

	initial := time.AfterFunc(a.Delays.Initial, func() { a.Post(trigger{reason: "initial"}) })
	defer initial.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.dispatch(ev)
		}
	}
}

func (a *Agent) dispatch(ev Event) {
	defer func() {
		if v := recover(); v != nil {
			a.Log.Error("编排循环异常",
				zap.String("error_kind", string(domain.ErrProcessing)),
				zap.Any("panic", v),
			)
			a.processing = false
			a.setState(a.lastID, Idle)
		}
	}()

	switch e := ev.(type) {
	case trigger:
		a.cycle(e.reason)
	case response:
		a.apply(e)
	case EventNavigated:
		a.navigated(e)
	case EventDismiss:
		a.dismiss()
	case EventToggle:
		a.toggle(e.Index)
	}
}

func (a *Agent) navigated(e EventNavigated) {
	if strings.TrimSpace(e.HTML) != "" {
		if err := a.Page.Replace(strings.NewReader(e.HTML)); err != nil {
			a.Log.Warn("替换页面失败", zap.Error(err))
		}
	}
	if e.URL != "" && e.URL != a.Page.URL() {
		a.Page.Navigate(e.URL)
		a.generation++
	}

	if e.History {
		a.Log.Debug("history 导航")
		a.scheduleDebounced()
		return
	}

	url := a.Page.URL()
	if url == a.lastURL {
		return
	}
	a.Log.Debug("地址变化，重新处理", zap.String("url", url))
	a.lastURL = url
	a.lastID = ""
	a.retried = ""
	a.removeOverlay()
	a.scheduleDebounced()
}

// cycle 执行一次编排：检测 → 提取 → 请求（异步回包）。
func (a *Agent) cycle(reason string) {
	if a.processing {
		a.Log.Debug("正在处理，忽略触发", zap.String("reason", reason))
		return
	}
	a.processing = true
	release := true
	defer func() {
		if release {
			a.processing = false
		}
	}()

	a.setState(a.lastID, Detecting)
	id, ok := page.DetectTitleID(a.Page.URL())
	if !ok {
		a.Log.Debug("未识别到标题 ID")
		a.setState("", Idle)
		return
	}
	if id == a.lastID {
		a.Log.Debug("标题已处理", zap.String("id", string(id)))
		a.setState(id, Idle)
		return
	}

	a.setState(id, AwaitingTitleInfo)
	info := a.Page.DisplayInfo()
	if !info.Found() {
		if a.retried != id {
			a.retried = id
			a.Log.Debug("未找到标题名，稍后重试", zap.String("id", string(id)), zap.Duration("after", a.Delays.Retry))
			a.scheduleRetry()
		} else {
			a.Log.Debug("重试后仍未找到标题名", zap.String("id", string(id)))
		}
		a.setState(id, Idle)
		return
	}

	a.lastID = id
	a.setState(id, RequestingAdvisory)
	a.Log.Debug("请求 parentsGuide",
		zap.String("id", string(id)),
		zap.String("title", info.TitleName),
		zap.String("year", info.Year),
	)

	q := domain.TitleQuery{ID: id, TitleName: info.TitleName, Year: info.Year}
	gen := a.generation
	release = false
	go a.request(q, gen)
}

func (a *Agent) request(q domain.TitleQuery, gen uint64) {
	resp := response{generation: gen, id: q.ID, title: q.TitleName}
	defer func() {
		if v := recover(); v != nil {
			resp.panicked = v
		}
		a.Post(resp)
	}()
	res, err := a.Bridge.Send(a.ctx, domain.NewRequest(q))
	if err != nil {
		a.Log.Warn("跨上下文通信失败", zap.Error(err))
		res = domain.Failure(domain.ErrComm, err.Error())
	}
	resp.result = res
}

func (a *Agent) apply(r response) {
	a.processing = false
	if r.panicked != nil {
		a.setState(r.id, Idle)
		panic(fmt.Sprint(r.panicked))
	}
	if r.generation != a.generation {
		a.Log.Debug("丢弃过期回包", zap.String("id", string(r.id)))
		// 回包未渲染，该 id 不算已处理；否则 history 导航回到同一标题时会被同 id 判断挡住。
		if a.lastID == r.id {
			a.lastID = ""
		}
		a.setState(r.id, Idle)
		a.scheduleDebounced()
		return
	}

	a.setState(r.id, Rendering)
	markup, err := overlay.Render(r.result, r.title)
	if err != nil {
		a.Log.Error("渲染浮层失败", zap.String("error_kind", string(domain.ErrProcessing)), zap.Error(err))
		a.setState(r.id, Idle)
		return
	}
	a.removeOverlay()
	ov, err := a.Page.Mount(markup)
	if err != nil {
		a.Log.Error("挂载浮层失败", zap.String("error_kind", string(domain.ErrProcessing)), zap.Error(err))
		a.setState(r.id, Idle)
		return
	}
	a.overlay = ov
	a.Log.Debug("浮层已创建",
		zap.String("id", string(r.id)),
		zap.Bool("success", r.result.Success),
		zap.Bool("cached", r.result.Cached),
	)
	a.setState(r.id, Idle)
	a.Observer.OnRendered(r.id, r.result)
}

func (a *Agent) dismiss() {
	if a.overlay == nil {
		return
	}
	a.removeOverlay()
	a.Observer.OnDismissed()
}

func (a *Agent) toggle(index int) {
	expanded, err := a.overlay.Toggle(index)
	if err != nil {
		a.Log.Debug("切换分类失败", zap.Int("index", index), zap.Error(err))
		return
	}
	a.Log.Debug("切换分类", zap.Int("index", index), zap.Bool("expanded", expanded))
}

func (a *Agent) removeOverlay() {
	a.overlay.Remove()
	a.overlay = nil
}

func (a *Agent) scheduleDebounced() {
	if a.debounce != nil {
		a.debounce.Stop()
	}
	a.debounce = time.AfterFunc(a.Delays.Debounce, func() { a.Post(trigger{reason: "debounce"}) })
}

func (a *Agent) scheduleRetry() {
	if a.retry != nil {
		a.retry.Stop()
	}
	a.retry = time.AfterFunc(a.Delays.Retry, func() { a.Post(trigger{reason: "retry"}) })
}

func (a *Agent) stopTimers() {
	if a.debounce != nil {
		a.debounce.Stop()
	}
	if a.retry != nil {
		a.retry.Stop()
	}
}

func (a *Agent) setState(id domain.TitleID, to State) {
	from := a.state
	a.state = to
	if from != to {
		a.Observer.OnState(id, from, to)
	}
}
