package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/John-Robertt/pgguide/internal/domain"
)

// Client 通过 HTTP 把消息发给远端 bridge 服务。
type Client struct {
	rc *resty.Client
}

// NewClient 构造 HTTP 通道；hc 为 nil 时使用 http.DefaultClient。
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bridge: resolver 地址不能为空")
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	rc := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc}, nil
}

func (c *Client) Send(ctx context.Context, req domain.Request) (domain.Result, error) {
	var res domain.Result
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&res).
		SetError(&res).
		Post(MessagePath)
	if err != nil {
		return domain.Result{}, err
	}
	// 对端给出了结构化失败时原样转交（例如请求体被拒绝）。
	if resp.IsError() {
		if res.Error != "" {
			return res, nil
		}
		return domain.Result{}, fmt.Errorf("bridge: 对端返回 HTTP %d", resp.StatusCode())
	}
	if !res.Success && res.Error == "" {
		return domain.Result{}, errors.New("bridge: 响应缺少 success/error")
	}
	return res, nil
}
