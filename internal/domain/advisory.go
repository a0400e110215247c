package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// AdvisoryPayload 是远端 parentsGuide 接口返回的文档。
//
// 约束：
// - 缓存与跨上下文传递都使用原始 JSON（Result.Data），这里只在渲染时按需解码
// - parentsGuide 缺失/为 null 与“空列表”是两种不同的展示结果，必须区分
type AdvisoryPayload struct {
	// Present 表示文档里存在非 null 的 parentsGuide 字段。
	Present    bool
	Categories []AdvisoryCategory
}

type AdvisoryCategory struct {
	Category           string              `json:"category"`
	Reviews            []Review            `json:"reviews"`
	SeverityBreakdowns []SeverityBreakdown `json:"severityBreakdowns"`
}

type Review struct {
	Text      string `json:"text"`
	IsSpoiler bool   `json:"isSpoiler"`

	raw json.RawMessage
}

// Raw 返回该条评论的原始 JSON（text 为空时用于兜底展示）。
func (r Review) Raw() string {
	if len(r.raw) == 0 {
		b, _ := json.Marshal(struct {
			Text      string `json:"text"`
			IsSpoiler bool   `json:"isSpoiler"`
		}{r.Text, r.IsSpoiler})
		return string(b)
	}
	return string(r.raw)
}

func (r *Review) UnmarshalJSON(b []byte) error {
	type alias Review
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = Review(a)
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	return nil
}

type SeverityBreakdown struct {
	SeverityLevel string `json:"severityLevel"`
	VoteCount     int    `json:"voteCount"`
}

// UnmarshalJSON 对 reviews/severityBreakdowns 做宽松解码：非数组视为空列表。
func (c *AdvisoryCategory) UnmarshalJSON(b []byte) error {
	var aux struct {
		Category           string          `json:"category"`
		Reviews            json.RawMessage `json:"reviews"`
		SeverityBreakdowns json.RawMessage `json:"severityBreakdowns"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Category = aux.Category
	c.Reviews = nil
	c.SeverityBreakdowns = nil
	if isJSONArray(aux.Reviews) {
		_ = json.Unmarshal(aux.Reviews, &c.Reviews)
	}
	if isJSONArray(aux.SeverityBreakdowns) {
		_ = json.Unmarshal(aux.SeverityBreakdowns, &c.SeverityBreakdowns)
	}
	return nil
}

// DecodeAdvisory 解析 parentsGuide 文档。
//
// 规则：
// - data 为空/null/非对象，或 parentsGuide 缺失/为 null：Present=false
// - parentsGuide 存在但不是数组（或数组元素无法解码）：Present=true 且 Categories 为空
func DecodeAdvisory(data json.RawMessage) AdvisoryPayload {
	var doc struct {
		ParentsGuide json.RawMessage `json:"parentsGuide"`
	}
	if !IsUsablePayload(data) {
		return AdvisoryPayload{}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return AdvisoryPayload{}
	}
	pg := bytes.TrimSpace(doc.ParentsGuide)
	if len(pg) == 0 || bytes.Equal(pg, []byte("null")) {
		return AdvisoryPayload{}
	}
	out := AdvisoryPayload{Present: true}
	if !isJSONArray(pg) {
		return out
	}
	var cats []AdvisoryCategory
	if err := json.Unmarshal(pg, &cats); err != nil {
		return out
	}
	out.Categories = cats
	return out
}

// IsUsablePayload 判断远端返回体是否可用（合法 JSON 且不是 null）。
func IsUsablePayload(data json.RawMessage) bool {
	b := bytes.TrimSpace(data)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return false
	}
	return json.Valid(b)
}

func isJSONArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

// CacheEntry 是缓存中保存的值（形如 {"data":...,"timestamp":<unix ms>}）。
//
// 约束：每个 TitleID 至多一条；过期只在读取时惰性判断。
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewCacheEntry 以 now 作为写入时间构造缓存条目。
func NewCacheEntry(data json.RawMessage, now time.Time) CacheEntry {
	return CacheEntry{
		Data:      append(json.RawMessage(nil), data...),
		Timestamp: now.UnixMilli(),
	}
}

// Age 返回条目相对 now 的年龄。
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// Expired 判断条目是否已过期：年龄严格大于 ttl 才算过期。
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return e.Age(now) > ttl
}
