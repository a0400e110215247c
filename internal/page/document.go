package page

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// OverlayID 是浮层根节点的 id；页面中至多存在一个。
const OverlayID = "imdb-pg-overlay"

// InsertionPoints 是浮层挂载容器的固定优先级列表。
var InsertionPoints = []string{
	".previewModal--detailsMetadata-left",
	".previewModal--container",
	".title-info-metadata-wrapper",
	"body",
}

var (
	ErrNoInsertionPoint = errors.New("页面中没有可挂载浮层的容器")
	ErrInvalidMarkup    = errors.New("浮层 markup 缺少根节点 #" + OverlayID)
	ErrDetached         = errors.New("浮层已不在页面中")
)

// Document 是 Page Agent 可见的页面：地址 + DOM。
//
// 约束：所有读写都经过 mu，调用方可以在 Agent 运行时安全地读取 HTML。
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
	url string
}

// Parse 解析 HTML 并绑定页面地址。
func Parse(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("解析页面失败：%w", err)
	}
	return &Document{doc: doc, url: pageURL}, nil
}

func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Navigate 只修改地址（单页应用的 history 导航）；DOM 保持不变。
func (d *Document) Navigate(pageURL string) {
	d.mu.Lock()
	d.url = pageURL
	d.mu.Unlock()
}

// Replace 用新的 HTML 替换整份 DOM；旧浮层句柄随之失效。
func (d *Document) Replace(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("解析页面失败：%w", err)
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	return nil
}

func (d *Document) DisplayInfo() DisplayInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ExtractDisplayInfo(d.doc)
}

func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return goquery.OuterHtml(d.doc.Selection)
}

// Mount 移除已有浮层后，把 markup 挂到第一个存在的插入点下。
func (d *Document) Mount(markup string) (*Overlay, error) {
	if !strings.Contains(markup, `id="`+OverlayID+`"`) {
		return nil, ErrInvalidMarkup
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var target *goquery.Selection
	for _, sel := range InsertionPoints {
		if s := d.doc.Find(sel).First(); s.Length() > 0 {
			target = s
			break
		}
	}
	if target == nil {
		return nil, ErrNoInsertionPoint
	}

	d.doc.Find("#" + OverlayID).Remove()
	target.AppendHtml(markup)
	node := target.ChildrenFiltered("#" + OverlayID).Last()
	if node.Length() == 0 {
		return nil, ErrInvalidMarkup
	}
	return &Overlay{d: d, doc: d.doc, sel: node}, nil
}

// Overlay 是已挂载浮层的句柄。
type Overlay struct {
	d   *Document
	doc *goquery.Document
	sel *goquery.Selection
}

// Attached 判断浮层是否仍在当前 DOM 中。
func (o *Overlay) Attached() bool {
	if o == nil {
		return false
	}
	o.d.mu.Lock()
	defer o.d.mu.Unlock()
	return o.attachedLocked()
}

func (o *Overlay) attachedLocked() bool {
	return o.doc == o.d.doc && o.sel.Parent().Length() > 0
}

// Remove 从页面中移除浮层；重复调用无副作用。
func (o *Overlay) Remove() {
	if o == nil {
		return
	}
	o.d.mu.Lock()
	defer o.d.mu.Unlock()
	if o.attachedLocked() {
		o.sel.Remove()
	}
}

// Toggle 切换第 index 个分类的展开状态，返回切换后的状态。
func (o *Overlay) Toggle(index int) (bool, error) {
	if o == nil {
		return false, ErrDetached
	}
	o.d.mu.Lock()
	defer o.d.mu.Unlock()
	if !o.attachedLocked() {
		return false, ErrDetached
	}

	btn := o.sel.Find(`.imdb-pg-accordion[data-index="` + strconv.Itoa(index) + `"]`).First()
	if btn.Length() == 0 {
		return false, fmt.Errorf("分类不存在：index=%d", index)
	}
	expanded := !btn.HasClass("active")
	display := "none"
	if expanded {
		btn.AddClass("active")
		display = "block"
	} else {
		btn.RemoveClass("active")
	}
	btn.Next().SetAttr("style", "display:"+display)
	return expanded, nil
}

func (o *Overlay) HTML() (string, error) {
	if o == nil {
		return "", ErrDetached
	}
	o.d.mu.Lock()
	defer o.d.mu.Unlock()
	return goquery.OuterHtml(o.sel)
}
