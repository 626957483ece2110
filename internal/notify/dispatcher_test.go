package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"xsushi-ratio-tracker/internal/storage"
)

type stubSubscribers struct {
	subs []storage.Subscriber
	err  error
}

func (s *stubSubscribers) ListSubscribers(ctx context.Context) ([]storage.Subscriber, error) {
	return s.subs, s.err
}

type recordingSender struct {
	sent   []int64
	failOn map[int64]bool
	onSend func()
}

func (r *recordingSender) Send(ctx context.Context, chatID int64, text string) error {
	if r.onSend != nil {
		r.onSend()
	}
	r.sent = append(r.sent, chatID)
	if r.failOn[chatID] {
		return errors.New("delivery rejected")
	}
	return nil
}

type instantLimiter struct {
	waits int
}

func (l *instantLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

func subs(ids ...int64) []storage.Subscriber {
	out := make([]storage.Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, storage.Subscriber{ChatID: id})
	}
	return out
}

func TestDispatchPartialFailure(t *testing.T) {
	source := &stubSubscribers{subs: subs(100, 200)}
	sender := &recordingSender{failOn: map[int64]bool{100: true}}
	limiter := &instantLimiter{}

	d := NewDispatcher(source, sender, limiter, zerolog.Nop())
	report, err := d.Dispatch(context.Background(), "hello")
	if err != nil {
		t.Fatalf("批量发送不应整体失败: %v", err)
	}

	if report.Delivered != 1 || report.Failed != 1 {
		t.Fatalf("期望 {delivered:1, failed:1}, 实际 %+v", report)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("两个订阅者都应被尝试, 实际 %d", len(sender.sent))
	}
	if limiter.waits != 2 {
		t.Fatalf("每次发送前都应消费限速器, 实际 %d 次", limiter.waits)
	}
}

func TestDispatchSnapshotIgnoresRegistryMutation(t *testing.T) {
	source := &stubSubscribers{subs: subs(1, 2, 3)}
	sender := &recordingSender{}
	// 批量进行中注册新订阅者，不应影响本轮。
	sender.onSend = func() {
		source.subs = append(source.subs, storage.Subscriber{ChatID: 999})
	}

	d := NewDispatcher(source, sender, &instantLimiter{}, zerolog.Nop())
	report, err := d.Dispatch(context.Background(), "hello")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}

	if report.Delivered+report.Failed != 3 {
		t.Fatalf("报告应覆盖快照大小 3, 实际 %+v", report)
	}
}

func TestDispatchEmptyRegistry(t *testing.T) {
	d := NewDispatcher(&stubSubscribers{}, &recordingSender{}, &instantLimiter{}, zerolog.Nop())
	report, err := d.Dispatch(context.Background(), "hello")
	if err != nil {
		t.Fatalf("空注册表不应报错: %v", err)
	}
	if report.Delivered != 0 || report.Failed != 0 {
		t.Fatalf("期望零报告, 实际 %+v", report)
	}
}

func TestDispatchListFailure(t *testing.T) {
	source := &stubSubscribers{err: errors.New("db down")}
	d := NewDispatcher(source, &recordingSender{}, &instantLimiter{}, zerolog.Nop())
	if _, err := d.Dispatch(context.Background(), "hello"); err == nil {
		t.Fatal("快照失败应向上传播")
	}
}

func TestDispatchStopsOnCancelledContext(t *testing.T) {
	source := &stubSubscribers{subs: subs(1, 2, 3)}
	sender := &recordingSender{}

	ctx, cancel := context.WithCancel(context.Background())
	sender.onSend = cancel // 第一个发送完成后触发停机

	d := NewDispatcher(source, sender, &instantLimiter{}, zerolog.Nop())
	report, err := d.Dispatch(ctx, "hello")
	if err == nil {
		t.Fatal("取消后应返回 context 错误")
	}
	if report.Delivered != 1 {
		t.Fatalf("当前接收者应完成后再停止, 实际 %+v", report)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("取消后不应继续发送, 实际 %d", len(sender.sent))
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	limiter := NewRateLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("首个令牌应立即可用: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("等待补充令牌不应报错: %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("第二次发送前应等待补充间隔")
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	ctx := context.Background()
	_ = limiter.Wait(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(timeoutCtx); err == nil {
		t.Fatal("expected context deadline error")
	}
}
