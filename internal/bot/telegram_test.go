package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/storage"
)

func point(ratio string, observedAt time.Time) storage.RatioPoint {
	return storage.RatioPoint{
		Ratio:      decimal.RequireFromString(ratio),
		ObservedAt: observedAt,
	}
}

func TestWelcomeMessageWithHistory(t *testing.T) {
	observed := time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	points := []storage.RatioPoint{
		point("1.2346", observed),
		point("1.2345", observed.Add(-24*time.Hour)),
	}

	got := WelcomeMessage(points, now)

	for _, want := range []string{
		"Date: 2024-03-15",
		"Sushi/xSushi = 1.2346",
		"xSushi/Sushi = 0.8100",
		"Last change date: 2024-03-14 10:30",
		"Last change: 0.01%",
		"To unsubscribe, use /stop",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("欢迎消息缺少 %q:\n%s", want, got)
		}
	}
}

func TestWelcomeMessageSinglePoint(t *testing.T) {
	observed := time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)
	got := WelcomeMessage([]storage.RatioPoint{point("1.2345", observed)}, time.Now())

	// 只有一条历史时变化率定义为 0.00。
	if !strings.Contains(got, "Last change: 0.00%") {
		t.Fatalf("单条历史的变化率应为 0.00:\n%s", got)
	}
}

func TestWelcomeMessageEmpty(t *testing.T) {
	got := WelcomeMessage(nil, time.Now())
	if !strings.Contains(got, "No data yet") {
		t.Fatalf("空库应返回无数据提示:\n%s", got)
	}
	if !strings.Contains(got, "/stop") {
		t.Fatal("提示中应包含退订说明")
	}
}
