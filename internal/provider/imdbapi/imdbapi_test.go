package imdbapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	providerx "github.com/John-Robertt/pgguide/internal/provider"
)

func newFakeAPI(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func TestSearch_FirstTitleAndQueryEncoding(t *testing.T) {
	var gotQuery, gotPath string
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"titles":[{"id":"tt000111","primaryTitle":"Example"},{"id":"tt999"}]}`))
	})

	// "e" + U+0301（分解形式）应被规范化为 "é"。
	id, err := p.Search(context.Background(), "  Cafe\u0301 & Co  ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id != "tt000111" {
		t.Fatalf("期望取首条结果，实际 %q", id)
	}
	if gotPath != "/search/titles" {
		t.Fatalf("path 不一致：%q", gotPath)
	}
	if gotQuery != "Caf\u00e9 & Co" {
		t.Fatalf("query 未正确规范化/编码：%q", gotQuery)
	}
}

func TestSearch_NoTitles(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"titles":[]}`))
	})
	_, err := p.Search(context.Background(), "Nothing")
	if !errors.Is(err, providerx.ErrNoMatch) {
		t.Fatalf("期望 ErrNoMatch，实际 %v", err)
	}
}

func TestSearch_HTTPError(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := p.Search(context.Background(), "x")
	var hs *providerx.HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望 HTTPStatusError(503)，实际 %v", err)
	}
}

func TestParentsGuide_RawBody(t *testing.T) {
	const body = `{"parentsGuide":[{"category":"VIOLENCE","severityBreakdowns":[{"severityLevel":"Moderate","voteCount":5}],"reviews":[]}]}`
	var gotPath string
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(body))
	})

	data, err := p.ParentsGuide(context.Background(), "tt000111")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if gotPath != "/titles/tt000111/parentsGuide" {
		t.Fatalf("path 不一致：%q", gotPath)
	}
	if string(data) != body {
		t.Fatalf("应原样返回 body：%s", data)
	}
}

func TestParentsGuide_NullIsEmpty(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	_, err := p.ParentsGuide(context.Background(), "tt1")
	if !errors.Is(err, providerx.ErrEmptyPayload) {
		t.Fatalf("期望 ErrEmptyPayload，实际 %v", err)
	}
}

func TestParentsGuide_NotFound(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := p.ParentsGuide(context.Background(), "tt1")
	var hs *providerx.HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusNotFound {
		t.Fatalf("期望 HTTPStatusError(404)，实际 %v", err)
	}
}
