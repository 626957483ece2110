package storage

import (
	"testing"
	"time"
)

func TestDayOfTruncatesToUTCDate(t *testing.T) {
	ts := time.Date(2024, 3, 15, 23, 59, 58, 0, time.UTC)
	day := DayOf(ts)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Fatalf("期望 %s, 实际 %s", want, day)
	}
}

func TestDayOfConvertsZoneBeforeBucketing(t *testing.T) {
	zone := time.FixedZone("UTC+8", 8*3600)
	// 本地 2024-03-16 02:00 仍属于 UTC 3 月 15 日。
	ts := time.Date(2024, 3, 16, 2, 0, 0, 0, zone)
	day := DayOf(ts)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Fatalf("期望 %s, 实际 %s", want, day)
	}
}

func TestDayOfSameDayCollapses(t *testing.T) {
	a := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)
	if !DayOf(a).Equal(DayOf(b)) {
		t.Fatal("同一 UTC 日应折叠到同一个 day key")
	}
}
