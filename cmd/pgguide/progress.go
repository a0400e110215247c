package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/John-Robertt/pgguide/internal/agent"
	"github.com/John-Robertt/pgguide/internal/domain"
)

var _ agent.Observer = (*progressUI)(nil)

// progressUI 把 Agent 的状态变化输出为简短的进度行（写 stderr，不污染 stdout）。
//
// 同时负责通知命令“浮层已渲染”或“已放弃”（重试后仍找不到标题）。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
	awaiting  int

	rendered chan domain.Result
	gaveUp   chan struct{}
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:         w,
		startedAt: time.Now(),
		rendered:  make(chan domain.Result, 1),
		gaveUp:    make(chan struct{}, 1),
	}
}

func (p *progressUI) OnState(id domain.TitleID, from, to agent.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.w != nil {
		label := string(id)
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(p.w, "[%s] %s → %s (id=%s)\n", formatShortDuration(time.Since(p.startedAt)), from, to, label)
	}

	switch {
	case from == agent.Detecting && to == agent.Idle:
		// 没有 ID 或 ID 已处理过：不会再有结果。
		p.signal(p.gaveUp)
	case from == agent.AwaitingTitleInfo && to == agent.Idle:
		p.awaiting++
		if p.awaiting >= 2 {
			p.signal(p.gaveUp)
		}
	}
}

func (p *progressUI) OnRendered(id domain.TitleID, res domain.Result) {
	p.mu.Lock()
	if p.w != nil {
		status := "ok"
		if !res.Success {
			status = string(res.Error)
		} else if res.Cached {
			status = "ok (cached)"
		}
		fmt.Fprintf(p.w, "浮层已渲染：id=%s %s (%s)\n", id, status, formatShortDuration(time.Since(p.startedAt)))
	}
	p.mu.Unlock()

	select {
	case p.rendered <- res:
	default:
	}
}

func (p *progressUI) OnDismissed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w != nil {
		fmt.Fprintln(p.w, "浮层已关闭")
	}
}

func (p *progressUI) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func formatShortDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}
