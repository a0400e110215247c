package domain

import (
	"encoding/json"
	"fmt"
)

// ErrorKind 是 Result 的失败标签。
type ErrorKind string

const (
	// ErrNotFound 表示远端搜索无法解析出标题。
	ErrNotFound ErrorKind = "NOT_FOUND"
	// ErrNoData 表示 parentsGuide 拉取失败或返回体不可用。
	ErrNoData ErrorKind = "NO_DATA"
	// ErrComm 表示跨上下文通道本身失败。
	ErrComm ErrorKind = "COMM_ERROR"
	// ErrProcessing 表示处理过程中出现未预期的故障。
	ErrProcessing ErrorKind = "PROCESSING_ERROR"
)

// ActionGetParentalGuide 是唯一的跨上下文请求动作。
const ActionGetParentalGuide = "getParentalGuide"

// Request 是 Page Agent 发给 Resolver 的消息。
type Request struct {
	Action    string `json:"action"`
	NetflixID string `json:"netflixId"`
	Title     string `json:"title"`
	Year      string `json:"year,omitempty"`
}

// NewRequest 由 TitleQuery 构造 getParentalGuide 请求。
func NewRequest(q TitleQuery) Request {
	return Request{
		Action:    ActionGetParentalGuide,
		NetflixID: string(q.ID),
		Title:     q.TitleName,
		Year:      q.Year,
	}
}

// Query 把请求还原为 TitleQuery；NetflixID 不合法时返回错误。
func (r Request) Query() (TitleQuery, error) {
	if r.Action != ActionGetParentalGuide {
		return TitleQuery{}, fmt.Errorf("未知 action：%q", r.Action)
	}
	id, ok := ParseTitleID(r.NetflixID)
	if !ok {
		return TitleQuery{}, fmt.Errorf("netflixId 不合法：%q", r.NetflixID)
	}
	return TitleQuery{ID: id, TitleName: r.Title, Year: r.Year}, nil
}

// Result 是一次解析的结果（Success | Failure 的标签联合），每个请求只返回一次，从不持久化。
//
// JSON 形态：{success, data?, cached?, error?, message?}
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
	Error   ErrorKind       `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func Success(data json.RawMessage, cached bool) Result {
	return Result{Success: true, Data: data, Cached: cached}
}

func Failure(kind ErrorKind, msg string) Result {
	return Result{Success: false, Error: kind, Message: msg}
}

// Advisory 解码成功结果中的 parentsGuide；失败结果返回 Present=false。
func (r Result) Advisory() AdvisoryPayload {
	if !r.Success {
		return AdvisoryPayload{}
	}
	return DecodeAdvisory(r.Data)
}
