package page

import (
	"net/url"
	"regexp"

	"github.com/John-Robertt/pgguide/internal/domain"
)

var (
	reTitlePath = regexp.MustCompile(`/title/(\d+)`)
	reWatchPath = regexp.MustCompile(`/watch/(\d+)`)
)

// DetectTitleID 从页面地址中识别站点标题 ID。
//
// 优先级：/title/<digits> → /watch/<digits> → 查询参数 jbv。首个命中即返回。
func DetectTitleID(rawURL string) (domain.TitleID, bool) {
	if m := reTitlePath.FindStringSubmatch(rawURL); m != nil {
		return domain.TitleID(m[1]), true
	}
	if m := reWatchPath.FindStringSubmatch(rawURL); m != nil {
		return domain.TitleID(m[1]), true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	// jbv 不限于数字，但必须能作为缓存 key。
	return domain.ParseTitleID(u.Query().Get("jbv"))
}
