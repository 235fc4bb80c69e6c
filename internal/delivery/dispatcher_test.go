package delivery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/rsscast/internal/bot"
	"github.com/hitoshi/rsscast/internal/model"
)

// mockBotClient はテスト用のボットクライアントモック。宛先ごとの呼び出しを記録する。
type mockBotClient struct {
	sentMessages []string // SendGroupMessageの宛先
	sentForwards []string // SendGroupForwardの宛先
	forwardNodes [][]bot.ForwardNode
	failFor      map[string]error // 宛先ごとの失敗設定
}

func (m *mockBotClient) SendGroupMessage(ctx context.Context, groupID string, segments []bot.MessageSegment) error {
	if err := m.failFor[groupID]; err != nil {
		return err
	}
	m.sentMessages = append(m.sentMessages, groupID)
	return nil
}

func (m *mockBotClient) SendGroupForward(ctx context.Context, groupID string, nodes []bot.ForwardNode) error {
	if err := m.failFor[groupID]; err != nil {
		return err
	}
	m.sentForwards = append(m.sentForwards, groupID)
	m.forwardNodes = append(m.forwardNodes, nodes)
	return nil
}

// mockRenderClient はテスト用のレンダリングクライアントモック。
type mockRenderClient struct {
	renderFunc func(ctx context.Context, htmlContent string) (string, error)
	calls      int
}

func (m *mockRenderClient) RenderHTML(ctx context.Context, htmlContent string) (string, error) {
	m.calls++
	if m.renderFunc != nil {
		return m.renderFunc(ctx, htmlContent)
	}
	return "aW1hZ2U=", nil
}

// mockDestRepo はテスト用の配信先リポジトリモック。
type mockDestRepo struct {
	disabled map[string]bool
}

func (m *mockDestRepo) FindByID(ctx context.Context, id string) (*model.Destination, error) {
	if m.disabled[id] {
		return &model.Destination{ID: id, Enabled: false, UpdatedAt: time.Now()}, nil
	}
	return nil, nil
}

func (m *mockDestRepo) ListAll(ctx context.Context) ([]*model.Destination, error) { return nil, nil }
func (m *mockDestRepo) Upsert(ctx context.Context, dest *model.Destination) error { return nil }

// mockMetrics はテスト用のメトリクスモック。
type mockMetrics struct {
	successes int
	failures  int
}

func (m *mockMetrics) RecordDelivery(mode string, success bool) {
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

func newTestDispatcher(botClient *mockBotClient, renderClient *mockRenderClient, destRepo *mockDestRepo) (*Dispatcher, *mockMetrics) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	metrics := &mockMetrics{}
	return NewDispatcher(botClient, renderClient, destRepo, metrics, logger), metrics
}

func dispatchFeed(mode model.DeliveryMode, destinations ...string) *model.Feed {
	return &model.Feed{
		ID:           "feed-1",
		URL:          "https://blog.example.com/rss.xml",
		Name:         "テストブログ",
		Enabled:      true,
		DeliveryMode: mode,
		Destinations: destinations,
	}
}

func newItems(count int) []model.FeedItem {
	items := make([]model.FeedItem, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, model.FeedItem{
			Title:       "記事",
			Link:        "https://blog.example.com/1",
			PublishedAt: int64(1000 + i),
		})
	}
	return items
}

// TestDispatch_ForwardMode は転送方式で1宛先1回の転送送信となることを検証する。
func TestDispatch_ForwardMode(t *testing.T) {
	botClient := &mockBotClient{}
	d, metrics := newTestDispatcher(botClient, &mockRenderClient{}, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeForward, "group-1"), newItems(3))

	if len(botClient.sentForwards) != 1 {
		t.Fatalf("expected 1 forward send, got %d", len(botClient.sentForwards))
	}
	if len(botClient.forwardNodes[0]) != 3 {
		t.Errorf("expected 3 forward nodes, got %d", len(botClient.forwardNodes[0]))
	}
	if metrics.successes != 1 {
		t.Errorf("expected 1 delivery success, got %d", metrics.successes)
	}
}

// TestDispatch_SingleMode は通常方式で記事ごとにメッセージ送信となることを検証する。
func TestDispatch_SingleMode(t *testing.T) {
	botClient := &mockBotClient{}
	d, _ := newTestDispatcher(botClient, &mockRenderClient{}, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeSingle, "group-1"), newItems(2))

	if len(botClient.sentMessages) != 2 {
		t.Errorf("expected 2 single messages, got %d", len(botClient.sentMessages))
	}
}

// TestDispatch_ImageMode は画像方式でレンダリングと画像送信が行われることを検証する。
func TestDispatch_ImageMode(t *testing.T) {
	botClient := &mockBotClient{}
	renderClient := &mockRenderClient{}
	d, _ := newTestDispatcher(botClient, renderClient, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeImage, "group-1"), newItems(2))

	if renderClient.calls != 2 {
		t.Errorf("expected 2 renders, got %d", renderClient.calls)
	}
	if len(botClient.sentMessages) != 2 {
		t.Errorf("expected 2 image messages, got %d", len(botClient.sentMessages))
	}
}

// TestDispatch_ImageModeFallback はレンダリング失敗時にテキスト配信へフォールバックすることを検証する。
func TestDispatch_ImageModeFallback(t *testing.T) {
	botClient := &mockBotClient{}
	renderClient := &mockRenderClient{
		renderFunc: func(ctx context.Context, htmlContent string) (string, error) {
			return "", errors.New("render service unavailable")
		},
	}
	d, metrics := newTestDispatcher(botClient, renderClient, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeImage, "group-1"), newItems(1))

	if len(botClient.sentMessages) != 1 {
		t.Errorf("expected fallback text message, got %d messages", len(botClient.sentMessages))
	}
	if metrics.failures != 0 {
		t.Errorf("fallback delivery should count as success, failures=%d", metrics.failures)
	}
}

// TestDispatch_DestinationIsolation は1宛先の失敗が他宛先へ波及しないことを検証する。
func TestDispatch_DestinationIsolation(t *testing.T) {
	botClient := &mockBotClient{
		failFor: map[string]error{"group-1": errors.New("group not found")},
	}
	d, metrics := newTestDispatcher(botClient, &mockRenderClient{}, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeForward, "group-1", "group-2"), newItems(1))

	if len(botClient.sentForwards) != 1 || botClient.sentForwards[0] != "group-2" {
		t.Errorf("expected delivery to group-2 despite group-1 failure, got %v", botClient.sentForwards)
	}
	if metrics.failures != 1 || metrics.successes != 1 {
		t.Errorf("expected 1 failure and 1 success, got failures=%d successes=%d",
			metrics.failures, metrics.successes)
	}
}

// TestDispatch_DisabledDestinationSkipped は無効化済み配信先がスキップされることを検証する。
func TestDispatch_DisabledDestinationSkipped(t *testing.T) {
	botClient := &mockBotClient{}
	destRepo := &mockDestRepo{disabled: map[string]bool{"group-1": true}}
	d, _ := newTestDispatcher(botClient, &mockRenderClient{}, destRepo)

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeForward, "group-1", "group-2"), newItems(1))

	if len(botClient.sentForwards) != 1 || botClient.sentForwards[0] != "group-2" {
		t.Errorf("expected only group-2 delivery, got %v", botClient.sentForwards)
	}
}

// TestDispatch_EmptyItems は新着なしで何も送信されないことを検証する。
func TestDispatch_EmptyItems(t *testing.T) {
	botClient := &mockBotClient{}
	d, _ := newTestDispatcher(botClient, &mockRenderClient{}, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryModeForward, "group-1"), nil)

	if len(botClient.sentForwards) != 0 && len(botClient.sentMessages) != 0 {
		t.Error("expected no sends for empty item batch")
	}
}

// TestDispatch_UnknownModeFallsBackToForward は未知の配信方式が転送方式で救済されることを検証する。
func TestDispatch_UnknownModeFallsBackToForward(t *testing.T) {
	botClient := &mockBotClient{}
	d, _ := newTestDispatcher(botClient, &mockRenderClient{}, &mockDestRepo{})

	d.Dispatch(context.Background(), dispatchFeed(model.DeliveryMode("broadcast"), "group-1"), newItems(1))

	if len(botClient.sentForwards) != 1 {
		t.Errorf("expected forward fallback for unknown mode, got %d", len(botClient.sentForwards))
	}
}
