package fetcher

import (
	"context"
	"testing"
)

func TestBarMissingConfig(t *testing.T) {
	bar := NewBar(BarOptions{}, noopLogger())
	if _, err := bar.FetchRatio(context.Background()); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	bar = NewBar(BarOptions{RPCURL: "http://localhost"}, noopLogger())
	if _, err := bar.FetchRatio(context.Background()); err == nil {
		t.Fatal("缺少合约地址应报错")
	}
}
