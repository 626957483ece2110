package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/storage"
)

type fakeRatioStore struct {
	points  []storage.RatioPoint
	listErr error

	from time.Time
	to   time.Time
}

func (f *fakeRatioStore) LatestRatio(ctx context.Context) (*storage.RatioPoint, error) {
	if len(f.points) == 0 {
		return nil, nil
	}
	return &f.points[0], nil
}

func (f *fakeRatioStore) UpsertDay(ctx context.Context, point storage.RatioPoint) (storage.WriteOutcome, error) {
	return storage.OutcomeInserted, nil
}

func (f *fakeRatioStore) ListBetween(ctx context.Context, from, to time.Time) ([]storage.RatioPoint, error) {
	f.from, f.to = from, to
	return f.points, f.listErr
}

func (f *fakeRatioStore) ListRecent(ctx context.Context, limit int) ([]storage.RatioPoint, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.points) {
		limit = len(f.points)
	}
	return f.points[:limit], nil
}

func (f *fakeRatioStore) CountDays(ctx context.Context) (int64, error) {
	return int64(len(f.points)), nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func samplePoints() []storage.RatioPoint {
	observed := time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)
	return []storage.RatioPoint{
		{
			Day:        storage.DayOf(observed),
			Ratio:      decimal.RequireFromString("1.2346"),
			ObservedAt: observed,
		},
	}
}

func TestRatioDataReturnsSeries(t *testing.T) {
	store := &fakeRatioStore{points: samplePoints()}
	handler := handleRatioData(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/ratio-data?from=2024-03-01&to=2024-03-31", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", rec.Code, rec.Body.String())
	}

	var out []ratioPointJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("响应不是合法 JSON: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("期望 1 个点, 实际 %d", len(out))
	}
	if out[0].Ratio != "1.2346" {
		t.Fatalf("比率序列化错误: %s", out[0].Ratio)
	}
	if out[0].Timestamp != "2024-03-14T10:30:00Z" {
		t.Fatalf("时间戳序列化错误: %s", out[0].Timestamp)
	}

	// 右端点必须覆盖整个 to 当日。
	wantFrom := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !store.from.Equal(wantFrom) {
		t.Fatalf("from 解析错误: %s", store.from)
	}
	if !store.to.After(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("to 未覆盖当日末尾: %s", store.to)
	}
}

func TestRatioDataRejectsBadDates(t *testing.T) {
	handler := handleRatioData(&fakeRatioStore{}, zerolog.Nop())

	for _, query := range []string{
		"?from=notadate",
		"?to=2024/03/01",
		"?from=2024-03-31&to=2024-03-01",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/ratio-data"+query, nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("查询 %q 应返回 400, 实际 %d", query, rec.Code)
		}
	}
}

func TestRatioDataStoreFailure(t *testing.T) {
	handler := handleRatioData(&fakeRatioStore{listErr: errors.New("pg down")}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/ratio-data", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("存储失败应返回 500, 实际 %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz 应返回 200, 实际 %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handleReady(&fakePinger{})(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("数据库可达时 readyz 应返回 200, 实际 %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handleReady(&fakePinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("数据库不可达时 readyz 应返回 503, 实际 %d", rec.Code)
	}
}

func writeIndex(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	page := "<html><head><title>xSushi</title></head><body></body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestIndexInjectsCrawlerMeta(t *testing.T) {
	dir := writeIndex(t)
	handler := handleIndex(dir, &fakeRatioStore{points: samplePoints()}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "TelegramBot (like TwitterBot)")
	rec := httptest.NewRecorder()
	handler(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "og:description") {
		t.Fatalf("爬虫请求应注入 og 标签:\n%s", body)
	}
	if !strings.Contains(body, "Sushi/xSushi = 1.2346") {
		t.Fatalf("注入的描述应含最新比率:\n%s", body)
	}
}

func TestIndexPlainForBrowsers(t *testing.T) {
	dir := writeIndex(t)
	handler := handleIndex(dir, &fakeRatioStore{points: samplePoints()}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if strings.Contains(rec.Body.String(), "og:description") {
		t.Fatal("普通浏览器不应收到注入的 meta 标签")
	}
}

func TestRobots(t *testing.T) {
	rec := httptest.NewRecorder()
	handleRobots()(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	if !strings.Contains(rec.Body.String(), "User-agent: *") {
		t.Fatalf("robots.txt 内容异常: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Disallow: /api/") {
		t.Fatal("robots.txt 应禁止抓取 API 路径")
	}
}
