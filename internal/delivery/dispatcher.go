package delivery

import (
	"context"
	"log/slog"

	"github.com/hitoshi/rsscast/internal/bot"
	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// BotClient はボットAPI呼び出しのインターフェース。
type BotClient interface {
	SendGroupMessage(ctx context.Context, groupID string, segments []bot.MessageSegment) error
	SendGroupForward(ctx context.Context, groupID string, nodes []bot.ForwardNode) error
}

// RenderClient はHTMLから画像を生成するインターフェース。
type RenderClient interface {
	RenderHTML(ctx context.Context, htmlContent string) (string, error)
}

// MetricsRecorder は配信結果の計測のインターフェース。
type MetricsRecorder interface {
	RecordDelivery(mode string, success bool)
}

// Dispatcher は新着記事を配信先グループへ送り分ける。
// 宛先ごとの失敗は他の宛先への配信に影響しない。配信失敗によって
// チェックサイクルが失敗することもない（ウォーターマークは配信前に確定済み）。
type Dispatcher struct {
	botClient    BotClient
	renderClient RenderClient
	destRepo     repository.DestinationRepository
	metrics      MetricsRecorder
	logger       *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(
	botClient BotClient,
	renderClient RenderClient,
	destRepo repository.DestinationRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		botClient:    botClient,
		renderClient: renderClient,
		destRepo:     destRepo,
		metrics:      metrics,
		logger:       logger,
	}
}

// Dispatch は新着記事をフィードの全配信先へ送信する。
// 明示的に無効化された配信先はスキップする。各宛先のエラーは
// ログとメトリクスに記録したうえで吸収される。
func (d *Dispatcher) Dispatch(ctx context.Context, f *model.Feed, items []model.FeedItem) {
	if len(items) == 0 {
		return
	}

	for _, destID := range f.Destinations {
		enabled, err := d.destinationEnabled(ctx, destID)
		if err != nil {
			d.logger.Error("配信先設定の取得に失敗しました",
				slog.String("feed_id", f.ID),
				slog.String("destination", destID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !enabled {
			d.logger.Info("無効化された配信先をスキップします",
				slog.String("feed_id", f.ID),
				slog.String("destination", destID),
			)
			continue
		}

		if err := d.deliverTo(ctx, f, destID, items); err != nil {
			d.metrics.RecordDelivery(string(f.DeliveryMode), false)
			d.logger.Error("配信に失敗しました",
				slog.String("feed_id", f.ID),
				slog.String("destination", destID),
				slog.String("delivery_mode", string(f.DeliveryMode)),
				slog.String("error", err.Error()),
			)
			continue
		}

		d.metrics.RecordDelivery(string(f.DeliveryMode), true)
		d.logger.Info("新着記事を配信しました",
			slog.String("feed_id", f.ID),
			slog.String("destination", destID),
			slog.String("delivery_mode", string(f.DeliveryMode)),
			slog.Int("item_count", len(items)),
		)
	}
}

// destinationEnabled は配信先が有効かを返す。未登録の配信先は有効として扱う。
func (d *Dispatcher) destinationEnabled(ctx context.Context, destID string) (bool, error) {
	dest, err := d.destRepo.FindByID(ctx, destID)
	if err != nil {
		return false, err
	}
	if dest == nil {
		return true, nil
	}
	return dest.Enabled, nil
}

// deliverTo は1宛先への配信を配信方式に従って実行する。
func (d *Dispatcher) deliverTo(ctx context.Context, f *model.Feed, destID string, items []model.FeedItem) error {
	switch f.DeliveryMode {
	case model.DeliveryModeSingle:
		for _, item := range items {
			if err := d.botClient.SendGroupMessage(ctx, destID, buildSingleMessage(f, item)); err != nil {
				return err
			}
		}
		return nil

	case model.DeliveryModeForward:
		return d.botClient.SendGroupForward(ctx, destID, buildForwardNodes(f, items))

	case model.DeliveryModeImage:
		for _, item := range items {
			if err := d.deliverImage(ctx, f, destID, item); err != nil {
				return err
			}
		}
		return nil

	default:
		// 未知の配信方式は設定破損とみなし、転送方式で救済する
		d.logger.Warn("未知の配信方式のため転送方式で配信します",
			slog.String("feed_id", f.ID),
			slog.String("delivery_mode", string(f.DeliveryMode)),
		)
		return d.botClient.SendGroupForward(ctx, destID, buildForwardNodes(f, items))
	}
}

// deliverImage は記事1件を画像として配信する。
// レンダリングに失敗した場合は通常メッセージにフォールバックする。
func (d *Dispatcher) deliverImage(ctx context.Context, f *model.Feed, destID string, item model.FeedItem) error {
	template := f.HTMLTemplate
	if template == "" {
		template = DefaultHTMLTemplate
	}

	htmlContent := RenderHTMLTemplate(template, f, item)

	imageBase64, err := d.renderClient.RenderHTML(ctx, htmlContent)
	if err != nil {
		d.logger.Warn("画像レンダリングに失敗したためテキストで配信します",
			slog.String("feed_id", f.ID),
			slog.String("destination", destID),
			slog.String("error", err.Error()),
		)
		return d.botClient.SendGroupMessage(ctx, destID, buildSingleMessage(f, item))
	}

	return d.botClient.SendGroupMessage(ctx, destID, buildImageMessage(f, imageBase64))
}
