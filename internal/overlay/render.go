package overlay

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/John-Robertt/pgguide/internal/domain"
)

// UnknownSeverity 是没有任何有效投票时展示的严重程度。
const UnknownSeverity = "Unknown"

var categoryLabels = map[string]string{
	"SEXUAL_CONTENT":             "Sex & Nudity",
	"VIOLENCE":                   "Violence & Gore",
	"PROFANITY":                  "Profanity",
	"ALCOHOL_DRUGS":              "Alcohol, Drugs & Smoking",
	"FRIGHTENING_INTENSE_SCENES": "Frightening & Intense Scenes",
}

//go:embed overlay.html.tmpl
var overlayTemplate string

var tmpl = template.Must(template.New("overlay").Parse(overlayTemplate))

// Label 返回分类代码的展示名；未知代码原样返回。
func Label(code string) string {
	if l, ok := categoryLabels[code]; ok {
		return l
	}
	return code
}

// TopSeverity 返回票数最高的严重程度。
//
// 规则：票数严格大于当前最大值才替换（并列取先出现者）；初始最大值为 0，
// 因此空列表或全部 0 票得到 Unknown。
func TopSeverity(items []domain.SeverityBreakdown) string {
	var top *domain.SeverityBreakdown
	best := 0
	for i := range items {
		if items[i].VoteCount > best {
			best = items[i].VoteCount
			top = &items[i]
		}
	}
	if top == nil || top.SeverityLevel == "" {
		return UnknownSeverity
	}
	return top.SeverityLevel
}

type view struct {
	Title      string
	NoInfo     bool
	Categories []categoryView
	Cached     bool
}

type categoryView struct {
	Index      int
	Label      string
	Top        string
	Severities []domain.SeverityBreakdown
	Reviews    []reviewView
}

type reviewView struct {
	Text    string
	Spoiler bool
}

// Render 把解析结果渲染为浮层 markup（纯函数，不接触页面）。
//
// 约束：
// - 失败结果或 parentsGuide 缺失：展示“无信息”提示（带标题）
// - parentsGuide 为空列表：展示“无分类”提示
// - 所有插值都经过 html/template 转义
func Render(res domain.Result, titleName string) (string, error) {
	v := view{Title: titleName, Cached: res.Cached}
	adv := res.Advisory()
	if !adv.Present {
		v.NoInfo = true
	}
	for i, c := range adv.Categories {
		cv := categoryView{
			Index:      i,
			Label:      Label(c.Category),
			Top:        TopSeverity(c.SeverityBreakdowns),
			Severities: c.SeverityBreakdowns,
		}
		for _, r := range c.Reviews {
			cv.Reviews = append(cv.Reviews, reviewView{Text: reviewText(r), Spoiler: r.IsSpoiler})
		}
		v.Categories = append(v.Categories, cv)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// reviewText 返回评论原文（由模板转义，不做任何删改）；text 为空时以原始 JSON 兜底。
func reviewText(r domain.Review) string {
	if r.Text == "" {
		return r.Raw()
	}
	return r.Text
}
