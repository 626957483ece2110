package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTreasuryFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tokens":[
			{"symbol":"SUSHI","balance":"1000000000000000000000","decimals":18,"price_usd":"0.75"},
			{"symbol":"WETH","balance":"2500000000000000000","decimals":18,"price_usd":"3000"},
			{"symbol":"DUST","balance":"42","decimals":0}
		]}`))
	}))
	defer srv.Close()

	f := NewTreasury(TreasuryOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	holdings, err := f.FetchHoldings(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(holdings) != 3 {
		t.Fatalf("期望 3 个持仓, 实际 %d", len(holdings))
	}

	if holdings[0].Balance().Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("SUSHI 余额换算错误: %s", holdings[0].Balance().String())
	}
	if holdings[1].PriceUSD == nil || holdings[1].PriceUSD.Cmp(decimal.NewFromInt(3000)) != 0 {
		t.Fatalf("WETH 价格解析错误: %#v", holdings[1].PriceUSD)
	}
	if holdings[2].PriceUSD != nil {
		t.Fatal("无价格的 token 应返回 nil PriceUSD")
	}
}

func TestTreasuryFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewTreasury(TreasuryOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.FetchHoldings(context.Background()); err == nil {
		t.Fatal("HTTP 500 应返回错误")
	}
}

func TestTreasuryFetchBadBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tokens":[{"symbol":"SUSHI","balance":"not-a-number","decimals":18}]}`))
	}))
	defer srv.Close()

	f := NewTreasury(TreasuryOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.FetchHoldings(context.Background()); err == nil {
		t.Fatal("非数值余额应报错")
	}
}

func TestTreasuryFetchMissingURL(t *testing.T) {
	f := NewTreasury(TreasuryOptions{}, noopLogger())
	if _, err := f.FetchHoldings(context.Background()); err == nil {
		t.Fatal("未配置 URL 时应报错")
	}
}
