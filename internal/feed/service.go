package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// SchedulerControl はフィードのタイマー制御のインターフェース。
// 設定変更とタイマー状態の整合はこのインターフェース経由で保つ。
type SchedulerControl interface {
	// StartFeed はフィードの周期チェックタイマーを開始する。
	// 既にタイマーがある場合は張り替える。
	StartFeed(feed *model.Feed)

	// StopFeed はフィードのタイマーを停止する。実行中のチェックは中断しない。
	StopFeed(feedID string)
}

// URLValidator はフィードURLの事前検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Fetcher はフィードの取得とパースのインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

// Service はフィード購読設定のユースケースを提供する。
// 設定の永続化とスケジューラのタイマー状態を常に整合させる。
type Service struct {
	feedRepo        repository.FeedRepository
	categoryRepo    repository.CategoryRepository
	scheduler       SchedulerControl
	urlValidator    URLValidator
	fetcher         Fetcher
	logger          *slog.Logger
	defaultInterval int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	feedRepo repository.FeedRepository,
	categoryRepo repository.CategoryRepository,
	scheduler SchedulerControl,
	urlValidator URLValidator,
	fetcher Fetcher,
	logger *slog.Logger,
	defaultInterval int,
) *Service {
	return &Service{
		feedRepo:        feedRepo,
		categoryRepo:    categoryRepo,
		scheduler:       scheduler,
		urlValidator:    urlValidator,
		fetcher:         fetcher,
		logger:          logger,
		defaultInterval: defaultInterval,
	}
}

// CreateFeedInput はフィード登録の入力。
type CreateFeedInput struct {
	URL                   string
	Name                  string
	CategoryID            string
	UpdateIntervalMinutes int
	DeliveryMode          string
	Destinations          []string
	HTMLTemplate          string
	ForwardTemplate       string
}

// UpdateFeedInput はフィード更新の入力。nilのフィールドは変更しない。
type UpdateFeedInput struct {
	Name                  *string
	CategoryID            *string
	Enabled               *bool
	UpdateIntervalMinutes *int
	DeliveryMode          *string
	Destinations          *[]string
	HTMLTemplate          *string
	ForwardTemplate       *string
}

// Create はフィードを登録し、有効であればタイマーを開始する。
// URLの検証、重複チェック、フィードとして取得可能かの確認を行う。
// ウォーターマークは0で初期化され、初回チェックで全記事が新着として配信される。
func (s *Service) Create(ctx context.Context, input CreateFeedInput) (*model.Feed, error) {
	if err := s.urlValidator.ValidateURL(input.URL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	existing, err := s.feedRepo.FindByURL(ctx, input.URL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateFeedURLError()
	}

	interval := input.UpdateIntervalMinutes
	if interval == 0 {
		interval = s.defaultInterval
	}
	if interval < model.MinUpdateIntervalMinutes {
		return nil, model.NewInvalidIntervalError(interval)
	}

	mode := model.DeliveryMode(input.DeliveryMode)
	if mode == "" {
		mode = model.DeliveryModeForward
	}
	if !mode.Valid() {
		return nil, model.NewInvalidDeliveryModeError(input.DeliveryMode)
	}

	if input.CategoryID != "" {
		category, err := s.categoryRepo.FindByID(ctx, input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, model.NewCategoryNotFoundError(input.CategoryID)
		}
	}

	// 登録前に1回取得してフィードとして解釈できることを確認する
	parsed, err := s.fetcher.Fetch(ctx, input.URL)
	if err != nil {
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = parsed.Title
	}
	if name == "" {
		name = input.URL
	}

	now := time.Now()
	feed := &model.Feed{
		ID:                    uuid.NewString(),
		URL:                   input.URL,
		Name:                  name,
		CategoryID:            input.CategoryID,
		Enabled:               true,
		UpdateIntervalMinutes: interval,
		DeliveryMode:          mode,
		Destinations:          input.Destinations,
		HTMLTemplate:          input.HTMLTemplate,
		ForwardTemplate:       input.ForwardTemplate,
		LastPublishWatermark:  0,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, err
	}

	s.scheduler.StartFeed(feed)

	s.logger.Info("フィードを登録しました",
		slog.String("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.String("name", feed.Name),
		slog.Int("interval_minutes", feed.UpdateIntervalMinutes),
	)

	return feed, nil
}

// Get は指定IDのフィードを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(id)
	}
	return feed, nil
}

// List は全フィードを返す。
func (s *Service) List(ctx context.Context) ([]*model.Feed, error) {
	return s.feedRepo.ListAll(ctx)
}

// Update はフィード設定を更新し、タイマー状態を追従させる。
// 有効なフィードはタイマーを張り替え、無効化されたフィードはタイマーを止める。
func (s *Service) Update(ctx context.Context, id string, input UpdateFeedInput) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(id)
	}

	if input.UpdateIntervalMinutes != nil {
		if *input.UpdateIntervalMinutes < model.MinUpdateIntervalMinutes {
			return nil, model.NewInvalidIntervalError(*input.UpdateIntervalMinutes)
		}
		feed.UpdateIntervalMinutes = *input.UpdateIntervalMinutes
	}

	if input.DeliveryMode != nil {
		mode := model.DeliveryMode(*input.DeliveryMode)
		if !mode.Valid() {
			return nil, model.NewInvalidDeliveryModeError(*input.DeliveryMode)
		}
		feed.DeliveryMode = mode
	}

	if input.CategoryID != nil {
		if *input.CategoryID != "" {
			category, err := s.categoryRepo.FindByID(ctx, *input.CategoryID)
			if err != nil {
				return nil, err
			}
			if category == nil {
				return nil, model.NewCategoryNotFoundError(*input.CategoryID)
			}
		}
		feed.CategoryID = *input.CategoryID
	}

	if input.Name != nil {
		feed.Name = *input.Name
	}
	if input.Enabled != nil {
		feed.Enabled = *input.Enabled
	}
	if input.Destinations != nil {
		feed.Destinations = *input.Destinations
	}
	if input.HTMLTemplate != nil {
		feed.HTMLTemplate = *input.HTMLTemplate
	}
	if input.ForwardTemplate != nil {
		feed.ForwardTemplate = *input.ForwardTemplate
	}

	feed.UpdatedAt = time.Now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, err
	}

	if feed.Enabled {
		s.scheduler.StartFeed(feed)
	} else {
		s.scheduler.StopFeed(feed.ID)
	}

	s.logger.Info("フィード設定を更新しました",
		slog.String("feed_id", feed.ID),
		slog.Bool("enabled", feed.Enabled),
		slog.Int("interval_minutes", feed.UpdateIntervalMinutes),
	)

	return feed, nil
}

// SetEnabled はフィードの有効/無効を切り替える。
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*model.Feed, error) {
	return s.Update(ctx, id, UpdateFeedInput{Enabled: &enabled})
}

// Delete はフィードを削除する。
// 削除済みフィードのチェックが走らないよう、タイマーを先に止める。
func (s *Service) Delete(ctx context.Context, id string) error {
	feed, err := s.feedRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if feed == nil {
		return model.NewFeedNotFoundError(id)
	}

	s.scheduler.StopFeed(id)

	if err := s.feedRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("フィードを削除しました",
		slog.String("feed_id", id),
		slog.String("feed_url", feed.URL),
	)

	return nil
}

// TestFeed はURLを取得・パースして内容のプレビューを返す。登録や配信は行わない。
func (s *Service) TestFeed(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
	if err := s.urlValidator.ValidateURL(feedURL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	return s.fetcher.Fetch(ctx, feedURL)
}
