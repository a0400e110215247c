package imdbapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/pgguide/internal/domain"
	providerx "github.com/John-Robertt/pgguide/internal/provider"
)

// DefaultBaseURL 是 imdbapi.dev 的公开入口（无需 API key）。
const DefaultBaseURL = "https://api.imdbapi.dev"

// Provider 实现 imdbapi.dev 的两步查询：
//   - GET {base}/search/titles?query=<title>
//   - GET {base}/titles/{id}/parentsGuide
//
// 约束：只取搜索结果的第一条；year 不参与消歧。
type Provider struct {
	rc *resty.Client
}

// New 基于调用方提供的 *http.Client 构造 provider；baseURL 为空时使用 DefaultBaseURL。
func New(baseURL string, c *http.Client) *Provider {
	if c == nil {
		c = &http.Client{}
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	rc := resty.NewWithClient(c).
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	return &Provider{rc: rc}
}

func (*Provider) Name() string { return "imdbapi" }

type searchResponse struct {
	Titles []struct {
		ID string `json:"id"`
	} `json:"titles"`
}

// Search 按标题全文搜索，返回首条结果的 IMDb ID。
func (p *Provider) Search(ctx context.Context, titleName string) (string, error) {
	q := normalizeQuery(titleName)
	if q == "" {
		return "", errors.New("title 不能为空")
	}

	resp, err := p.rc.R().
		SetContext(ctx).
		SetQueryParam("query", q).
		Get("/search/titles")
	if err != nil {
		return "", err
	}
	if err := statusError(resp); err != nil {
		return "", err
	}

	var sr searchResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return "", err
	}
	if len(sr.Titles) == 0 || strings.TrimSpace(sr.Titles[0].ID) == "" {
		return "", providerx.ErrNoMatch
	}
	return strings.TrimSpace(sr.Titles[0].ID), nil
}

// ParentsGuide 拉取 parentsGuide 原始文档。
func (p *Provider) ParentsGuide(ctx context.Context, externalID string) (json.RawMessage, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, errors.New("external id 不能为空")
	}

	resp, err := p.rc.R().
		SetContext(ctx).
		SetPathParam("id", externalID).
		Get("/titles/{id}/parentsGuide")
	if err != nil {
		return nil, err
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}

	body := json.RawMessage(resp.Body())
	if !domain.IsUsablePayload(body) {
		return nil, providerx.ErrEmptyPayload
	}
	return append(json.RawMessage(nil), body...), nil
}

func statusError(resp *resty.Response) error {
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return nil
	}
	u := ""
	if resp.Request != nil {
		u = resp.Request.URL
	}
	return &providerx.HTTPStatusError{
		URL:        u,
		StatusCode: resp.StatusCode(),
		Location:   resp.Header().Get("Location"),
	}
}

// normalizeQuery 去掉首尾空白并做 NFC 规范化（页面文本可能是分解形式的重音字符）。
func normalizeQuery(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
