package domain

import (
	"regexp"
	"strings"
)

// TitleID 是站点侧的作品标识（例如 Netflix 的 81234567），同时也是缓存 key。
//
// 约束：只由页面 URL 检测得到；Resolver 只把它当作不透明字符串使用。
type TitleID string

// titleIDRE 与缓存 key 的字符集一致：任何能作为 key 的值都是合法 ID。
var titleIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ParseTitleID 校验并解析 TitleID（字母、数字、'_'、'-'，最长 128）。
func ParseTitleID(s string) (TitleID, bool) {
	s = strings.TrimSpace(s)
	if !titleIDRE.MatchString(s) {
		return "", false
	}
	return TitleID(s), true
}

// TitleQuery 描述一次导航得到的查询输入（临时对象，不持久化）。
type TitleQuery struct {
	ID        TitleID
	TitleName string
	Year      string // 空串表示未知
}
