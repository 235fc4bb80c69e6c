package feed

import (
	"reflect"
	"testing"

	"github.com/hitoshi/rsscast/internal/model"
)

func items(timestamps ...int64) []model.FeedItem {
	result := make([]model.FeedItem, 0, len(timestamps))
	for i, ts := range timestamps {
		result = append(result, model.FeedItem{
			Title:       string(rune('A' + i)),
			PublishedAt: ts,
		})
	}
	return result
}

func publishedTimes(selected []model.FeedItem) []int64 {
	result := make([]int64, 0, len(selected))
	for _, item := range selected {
		result = append(result, item.PublishedAt)
	}
	return result
}

// TestDetect_NewerItemsOnly はウォーターマークより新しい記事のみが選ばれることを検証する。
func TestDetect_NewerItemsOnly(t *testing.T) {
	outcome := Detect(1000, items(500, 1500, 1500, 900))

	if len(outcome.NewItems) != 2 {
		t.Fatalf("expected 2 new items, got %d", len(outcome.NewItems))
	}
	// 同時刻（1500）の2件は入力中の相対順を維持する
	if outcome.NewItems[0].Title != "B" || outcome.NewItems[1].Title != "C" {
		t.Errorf("expected stable order B, C, got %s, %s",
			outcome.NewItems[0].Title, outcome.NewItems[1].Title)
	}
	if outcome.AdvancedWatermark != 1500 {
		t.Errorf("expected watermark 1500, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_FirstCheck は初回チェック（ウォーターマーク0）で全記事が新着となることを検証する。
func TestDetect_FirstCheck(t *testing.T) {
	outcome := Detect(0, items(100, 200))

	if len(outcome.NewItems) != 2 {
		t.Fatalf("expected all items as new on first check, got %d", len(outcome.NewItems))
	}
	if got := publishedTimes(outcome.NewItems); !reflect.DeepEqual(got, []int64{200, 100}) {
		t.Errorf("expected descending order [200 100], got %v", got)
	}
	if outcome.AdvancedWatermark != 200 {
		t.Errorf("expected watermark 200, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_FirstCheckIncludesDateless は初回チェックで公開日時のない記事も含まれることを検証する。
func TestDetect_FirstCheckIncludesDateless(t *testing.T) {
	outcome := Detect(0, items(0, 300))

	if len(outcome.NewItems) != 2 {
		t.Fatalf("expected 2 new items, got %d", len(outcome.NewItems))
	}
	if outcome.AdvancedWatermark != 300 {
		t.Errorf("expected watermark 300, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_DatelessExcludedAfterFirstCheck は2回目以降は日時なし記事が選ばれないことを検証する。
func TestDetect_DatelessExcludedAfterFirstCheck(t *testing.T) {
	outcome := Detect(300, items(0, 200, 300))

	if len(outcome.NewItems) != 0 {
		t.Errorf("expected no new items, got %d", len(outcome.NewItems))
	}
	if outcome.AdvancedWatermark != 300 {
		t.Errorf("watermark should not move, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_NoNewItems は新着がない場合にウォーターマークが維持されることを検証する。
func TestDetect_NoNewItems(t *testing.T) {
	outcome := Detect(1000, items(100, 500, 1000))

	if len(outcome.NewItems) != 0 {
		t.Errorf("expected no new items, got %d", len(outcome.NewItems))
	}
	if outcome.AdvancedWatermark != 1000 {
		t.Errorf("expected watermark unchanged at 1000, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_EmptyFeed は空のフィードで空の結果が返ることを検証する。
func TestDetect_EmptyFeed(t *testing.T) {
	outcome := Detect(1000, nil)

	if len(outcome.NewItems) != 0 {
		t.Errorf("expected no new items, got %d", len(outcome.NewItems))
	}
	if outcome.AdvancedWatermark != 1000 {
		t.Errorf("expected watermark unchanged, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_Monotonic はウォーターマークが後退しないことを検証する。
// フィードが古い記事しか返さなくなっても前回値を維持する。
func TestDetect_Monotonic(t *testing.T) {
	outcome := Detect(5000, items(100, 200))

	if outcome.AdvancedWatermark != 5000 {
		t.Errorf("expected watermark to stay at 5000, got %d", outcome.AdvancedWatermark)
	}
}

// TestDetect_Idempotent は進めたウォーターマークで再実行すると新着ゼロになることを検証する。
func TestDetect_Idempotent(t *testing.T) {
	input := items(500, 1500, 900)

	first := Detect(1000, input)
	second := Detect(first.AdvancedWatermark, input)

	if len(second.NewItems) != 0 {
		t.Errorf("re-run with advanced watermark should yield no new items, got %d", len(second.NewItems))
	}
	if second.AdvancedWatermark != first.AdvancedWatermark {
		t.Errorf("watermark changed on idempotent re-run: %d -> %d",
			first.AdvancedWatermark, second.AdvancedWatermark)
	}
}

// TestDetect_DescendingOrder は新着記事が公開時刻の降順で返ることを検証する。
func TestDetect_DescendingOrder(t *testing.T) {
	outcome := Detect(0, items(300, 100, 200))

	if got := publishedTimes(outcome.NewItems); !reflect.DeepEqual(got, []int64{300, 200, 100}) {
		t.Errorf("expected [300 200 100], got %v", got)
	}
}
