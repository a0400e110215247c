package page

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxTitleRunes 是标题候选的长度上限（不含）。
const maxTitleRunes = 200

// titleSelectors 按优先级排列；每个选择器只看文档中第一个命中的元素。
var titleSelectors = []string{
	".title-title",
	`[data-uia="video-title"]`,
	".previewModal--player-titleTreatment-logo",
	".title-logo",
	".previewModal--player-title",
	"h1",
	"h2",
}

const yearSelector = `.year, [data-uia="video-year"], .item-year, .title-info-metadata-item`

var (
	reSiteSuffix   = regexp.MustCompile(`(?i)\s*-\s*Netflix.*$`)
	reWatchPrefix  = regexp.MustCompile(`(?i)^Watch\s+`)
	reYear         = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reYearInParens = regexp.MustCompile(`\((\d{4})\)`)
)

// DisplayInfo 是从页面提取到的人类可读标题与年份。
type DisplayInfo struct {
	TitleName string
	Year      string // 空表示未知
}

// Found 返回是否提取到了标题；未提取到表示页面“尚未就绪”。
func (d DisplayInfo) Found() bool { return d.TitleName != "" }

// ExtractDisplayInfo 按固定优先级从文档中提取标题与年份。
//
// 约束：
// - 文档标题优先：去掉站点后缀与前导 "Watch "
// - 其次按 titleSelectors，优先 alt 属性，否则取去空白后的文本
// - 年份先看 yearSelector 的首个元素，否则从标题中的 "(YYYY)" 提取并从标题中去掉
func ExtractDisplayInfo(doc *goquery.Document) DisplayInfo {
	var info DisplayInfo
	if doc == nil {
		return info
	}

	if t := documentTitle(doc); t != "" {
		t = reSiteSuffix.ReplaceAllString(t, "")
		t = strings.TrimSpace(reWatchPrefix.ReplaceAllString(t, ""))
		if acceptableTitle(t) {
			info.TitleName = t
		}
	}

	if info.TitleName == "" {
		for _, sel := range titleSelectors {
			el := doc.Find(sel).First()
			if el.Length() == 0 {
				continue
			}
			text, ok := el.Attr("alt")
			if !ok || text == "" {
				text = strings.TrimSpace(el.Text())
			}
			if acceptableTitle(text) {
				info.TitleName = text
				break
			}
		}
	}

	if el := doc.Find(yearSelector).First(); el.Length() > 0 {
		info.Year = reYear.FindString(el.Text())
	}
	if info.Year == "" && info.TitleName != "" {
		if m := reYearInParens.FindStringSubmatchIndex(info.TitleName); m != nil {
			info.Year = info.TitleName[m[2]:m[3]]
			info.TitleName = strings.TrimSpace(info.TitleName[:m[0]] + info.TitleName[m[1]:])
		}
	}
	return info
}

// documentTitle 取 <title> 文本并折叠空白。
func documentTitle(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func acceptableTitle(s string) bool {
	return s != "" && utf8.RuneCountInString(s) < maxTitleRunes
}
