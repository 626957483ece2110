package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGraphFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if req["operationName"] != "SushiBarStats" {
			t.Fatalf("operationName 不正确: %v", req["operationName"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"sushiBarStats": map[string]any{"xSushiSushiRatio": "1.23456"},
			},
		})
	}))
	defer srv.Close()

	g := NewGraph(GraphOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	ratio, err := g.FetchRatio(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if ratio.Cmp(decimal.RequireFromString("1.2346")) != 0 {
		t.Fatalf("期望量化到 4 位小数 1.2346, 实际 %s", ratio.String())
	}
}

func TestGraphFetchNumericField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"sushiBarStats":{"xSushiSushiRatio":1.5}}}`))
	}))
	defer srv.Close()

	g := NewGraph(GraphOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	ratio, err := g.FetchRatio(context.Background())
	if err != nil {
		t.Fatalf("数值字段也应能解析: %v", err)
	}
	if ratio.Cmp(decimal.RequireFromString("1.5")) != 0 {
		t.Fatalf("期望 1.5, 实际 %s", ratio.String())
	}
}

func TestGraphFetchMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"sushiBarStats":{}}}`))
	}))
	defer srv.Close()

	g := NewGraph(GraphOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := g.FetchRatio(context.Background()); err == nil {
		t.Fatal("缺少字段应报错")
	}
}

func TestGraphFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGraph(GraphOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := g.FetchRatio(context.Background()); err == nil {
		t.Fatal("HTTP 502 应返回错误")
	}
}

func TestGraphFetchGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"field deprecated"}]}`))
	}))
	defer srv.Close()

	g := NewGraph(GraphOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := g.FetchRatio(context.Background()); err == nil {
		t.Fatal("errors 数组应返回错误")
	}
}

func TestGraphFetchMissingURL(t *testing.T) {
	g := NewGraph(GraphOptions{}, noopLogger())
	if _, err := g.FetchRatio(context.Background()); err == nil {
		t.Fatal("未配置 URL 时应报错")
	}
}
