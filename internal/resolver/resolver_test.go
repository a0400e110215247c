package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/John-Robertt/pgguide/internal/domain"
	"github.com/John-Robertt/pgguide/internal/infra/cache"
	"github.com/John-Robertt/pgguide/internal/metrics"
	"github.com/John-Robertt/pgguide/internal/provider"
)

type stubProvider struct {
	searchID   string
	searchErr  error
	guide      json.RawMessage
	guideErr   error
	searches   []string
	guideCalls []string
	panicMsg   string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(_ context.Context, title string) (string, error) {
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	p.searches = append(p.searches, title)
	return p.searchID, p.searchErr
}

func (p *stubProvider) ParentsGuide(_ context.Context, id string) (json.RawMessage, error) {
	p.guideCalls = append(p.guideCalls, id)
	return p.guide, p.guideErr
}

const samplePayload = `{"parentsGuide":[{"category":"VIOLENCE","severityBreakdowns":[{"severityLevel":"Moderate","voteCount":5}],"reviews":[]}]}`

func newTestResolver(p provider.Provider, now *time.Time) (*Resolver, *cache.Memory) {
	mem := cache.NewMemory()
	c := cache.NewExpiring(mem, cache.DefaultTTL, nil)
	c.Now = func() time.Time { return *now }
	return New(p, c, metrics.NewResolver(nil), nil), mem
}

func TestResolve_FetchThenCached(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := &stubProvider{searchID: "tt000111", guide: json.RawMessage(samplePayload)}
	r, mem := newTestResolver(p, &now)

	first := r.Resolve(context.Background(), "81234567", "Example Movie", "2020")
	if !first.Success || first.Cached {
		t.Fatalf("first=%+v", first)
	}
	if string(first.Data) != samplePayload {
		t.Fatalf("data=%s", first.Data)
	}
	if mem.Len() != 1 {
		t.Fatalf("cache len=%d", mem.Len())
	}
	if len(p.searches) != 1 || p.searches[0] != "Example Movie" {
		t.Fatalf("searches=%v", p.searches)
	}
	if len(p.guideCalls) != 1 || p.guideCalls[0] != "tt000111" {
		t.Fatalf("guideCalls=%v", p.guideCalls)
	}

	now = now.Add(time.Hour)
	second := r.Resolve(context.Background(), "81234567", "Example Movie", "2020")
	if !second.Success || !second.Cached {
		t.Fatalf("second=%+v", second)
	}
	if string(second.Data) != samplePayload {
		t.Fatalf("cached data=%s", second.Data)
	}
	if len(p.searches) != 1 {
		t.Fatalf("cache hit should not search again: %v", p.searches)
	}
}

func TestResolve_ExpiredEntryRefetches(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := &stubProvider{searchID: "tt1", guide: json.RawMessage(samplePayload)}
	r, _ := newTestResolver(p, &now)

	r.Resolve(context.Background(), "1", "X", "")
	now = now.Add(cache.DefaultTTL + time.Millisecond)
	res := r.Resolve(context.Background(), "1", "X", "")
	if !res.Success || res.Cached {
		t.Fatalf("res=%+v", res)
	}
	if len(p.searches) != 2 {
		t.Fatalf("searches=%v", p.searches)
	}
}

func TestResolve_ExactlyTTLIsStillFresh(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := &stubProvider{searchID: "tt1", guide: json.RawMessage(samplePayload)}
	r, _ := newTestResolver(p, &now)

	r.Resolve(context.Background(), "1", "X", "")
	now = now.Add(cache.DefaultTTL)
	res := r.Resolve(context.Background(), "1", "X", "")
	if !res.Cached {
		t.Fatalf("res=%+v", res)
	}
}

func TestResolve_NoMatchIsNotFound(t *testing.T) {
	now := time.Now()
	p := &stubProvider{searchErr: provider.ErrNoMatch}
	r, mem := newTestResolver(p, &now)

	res := r.Resolve(context.Background(), "1", "Nothing", "")
	if res.Success || res.Error != domain.ErrNotFound || res.Message != MsgNotFound {
		t.Fatalf("res=%+v", res)
	}
	if len(p.guideCalls) != 0 {
		t.Fatalf("guide should not be called: %v", p.guideCalls)
	}
	if mem.Len() != 0 {
		t.Fatalf("failure must not be cached")
	}
}

func TestResolve_SearchTransportErrorIsNotFound(t *testing.T) {
	now := time.Now()
	p := &stubProvider{searchErr: errors.New("dial tcp: connection refused")}
	r, _ := newTestResolver(p, &now)

	res := r.Resolve(context.Background(), "1", "X", "")
	if res.Error != domain.ErrNotFound {
		t.Fatalf("res=%+v", res)
	}
}

func TestResolve_BlankSearchIDIsNotFound(t *testing.T) {
	now := time.Now()
	p := &stubProvider{searchID: "  "}
	r, _ := newTestResolver(p, &now)

	if res := r.Resolve(context.Background(), "1", "X", ""); res.Error != domain.ErrNotFound {
		t.Fatalf("res=%+v", res)
	}
}

func TestResolve_GuideFailureIsNoData(t *testing.T) {
	now := time.Now()
	for _, guideErr := range []error{
		provider.ErrEmptyPayload,
		&provider.HTTPStatusError{StatusCode: 500},
	} {
		p := &stubProvider{searchID: "tt1", guideErr: guideErr}
		r, mem := newTestResolver(p, &now)
		res := r.Resolve(context.Background(), "1", "X", "")
		if res.Success || res.Error != domain.ErrNoData || res.Message != MsgNoData {
			t.Fatalf("err=%v res=%+v", guideErr, res)
		}
		if mem.Len() != 0 {
			t.Fatalf("failure must not be cached")
		}
	}
}

func TestHandle_InvalidRequest(t *testing.T) {
	now := time.Now()
	r, _ := newTestResolver(&stubProvider{}, &now)

	res := r.Handle(context.Background(), domain.Request{Action: "other", NetflixID: "1"})
	if res.Error != domain.ErrProcessing {
		t.Fatalf("res=%+v", res)
	}
}

func TestHandle_PanicBecomesProcessingError(t *testing.T) {
	now := time.Now()
	r, _ := newTestResolver(&stubProvider{panicMsg: "boom"}, &now)

	res := r.Handle(context.Background(), domain.NewRequest(domain.TitleQuery{ID: "1", TitleName: "X"}))
	if res.Success || res.Error != domain.ErrProcessing || res.Message != "boom" {
		t.Fatalf("res=%+v", res)
	}
}

func TestHandle_ValidRequest(t *testing.T) {
	now := time.Now()
	p := &stubProvider{searchID: "tt1", guide: json.RawMessage(samplePayload)}
	r, _ := newTestResolver(p, &now)

	res := r.Handle(context.Background(), domain.NewRequest(domain.TitleQuery{ID: "81234567", TitleName: "Example Movie", Year: "2020"}))
	if !res.Success {
		t.Fatalf("res=%+v", res)
	}
}

func TestHandle_NonNumericDetectedID(t *testing.T) {
	now := time.Now()
	p := &stubProvider{searchID: "tt1", guide: json.RawMessage(samplePayload)}
	r, mem := newTestResolver(p, &now)

	res := r.Handle(context.Background(), domain.NewRequest(domain.TitleQuery{ID: "abc123", TitleName: "Example Movie"}))
	if !res.Success || res.Cached {
		t.Fatalf("res=%+v", res)
	}
	if _, ok, _ := mem.Get(context.Background(), "abc123"); !ok {
		t.Fatalf("应以 abc123 为 key 写入缓存")
	}
}
