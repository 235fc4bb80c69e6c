// Package scheduler はフィードごとの周期チェックタイマーを管理する。
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/rsscast/internal/feed"
	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// Fetcher はフィードの取得とパースのインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

// Dispatcher は新着記事の配信のインターフェース。
// 配信失敗は実装側で宛先ごとに吸収され、チェックサイクルを失敗させない。
type Dispatcher interface {
	Dispatch(ctx context.Context, f *model.Feed, items []model.FeedItem)
}

// MetricsRecorder はチェックサイクルの計測のインターフェース。
type MetricsRecorder interface {
	RecordCheck(success bool, duration time.Duration)
	RecordNewItems(count int)
}

// Scheduler はフィードごとにタイマーを張り、周期的に更新チェックを実行する。
// タイマーの生成・停止は単一のミューテックスで直列化される。
// 同一フィードのチェックはフィードごとのミューテックスで直列化され、
// 異なるフィードのチェックは並行して実行される。
type Scheduler struct {
	feedRepo     repository.FeedRepository
	fetcher      Fetcher
	dispatcher   Dispatcher
	metrics      MetricsRecorder
	logger       *slog.Logger
	initialDelay time.Duration

	mu       sync.Mutex
	timers   map[string]context.CancelFunc
	runLocks map[string]*sync.Mutex

	// baseCtx はチェック実行用のコンテキスト。タイマーのコンテキストとは
	// 独立しており、StopFeedしても実行中のチェックは中断されない。
	baseCtx context.Context
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	fetcher Fetcher,
	dispatcher Dispatcher,
	metrics MetricsRecorder,
	logger *slog.Logger,
	initialDelay time.Duration,
) *Scheduler {
	return &Scheduler{
		feedRepo:     feedRepo,
		fetcher:      fetcher,
		dispatcher:   dispatcher,
		metrics:      metrics,
		logger:       logger,
		initialDelay: initialDelay,
		timers:       make(map[string]context.CancelFunc),
		runLocks:     make(map[string]*sync.Mutex),
		baseCtx:      context.Background(),
	}
}

// StartAll は有効な全フィードのタイマーを開始する。
// ctxは以降のチェック実行に使用される。
func (s *Scheduler) StartAll(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	feeds, err := s.feedRepo.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, f := range feeds {
		s.StartFeed(f)
	}

	s.logger.Info("スケジューラを開始しました",
		slog.Int("feed_count", len(feeds)),
	)

	return nil
}

// StartFeed はフィードのタイマーを開始する。
// 既存のタイマーがある場合は先に停止してから張り替えるため、
// 二重起動しても1フィードにつきタイマーは常に1本となる。
// 無効なフィードに対しては何もしない。
func (s *Scheduler) StartFeed(f *model.Feed) {
	if !f.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[f.ID]; ok {
		existing()
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	s.timers[f.ID] = cancel

	interval := time.Duration(f.UpdateIntervalMinutes) * time.Minute
	go s.runTimer(timerCtx, f.ID, interval)

	s.logger.Info("フィードタイマーを開始しました",
		slog.String("feed_id", f.ID),
		slog.Duration("interval", interval),
	)
}

// runTimer は初回チェックの遅延後、intervalごとにチェックを実行する。
// チェックは同期的に実行されるため、チェックが間隔より長引いた場合は
// 次のティックが1回にまとめられ、同一フィードのチェックが重なることはない。
func (s *Scheduler) runTimer(timerCtx context.Context, feedID string, interval time.Duration) {
	select {
	case <-timerCtx.Done():
		return
	case <-time.After(s.initialDelay):
	}

	s.CheckUpdate(s.checkContext(), feedID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timerCtx.Done():
			return
		case <-ticker.C:
			s.CheckUpdate(s.checkContext(), feedID)
		}
	}
}

// checkContext はチェック実行用のコンテキストを返す。
func (s *Scheduler) checkContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// StopFeed はフィードのタイマーを停止する。
// 実行中のチェックは中断せず、完了まで走りきる。
func (s *Scheduler) StopFeed(feedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.timers[feedID]; ok {
		cancel()
		delete(s.timers, feedID)
		s.logger.Info("フィードタイマーを停止しました",
			slog.String("feed_id", feedID),
		)
	}
}

// StopAll は全フィードのタイマーを停止する。
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for feedID, cancel := range s.timers {
		cancel()
		delete(s.timers, feedID)
	}

	s.logger.Info("スケジューラを停止しました")
}

// ActiveFeedIDs は現在タイマーが張られているフィードIDを返す。
func (s *Scheduler) ActiveFeedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

// IsFeedRunning はフィードのタイマーが張られているかを返す。
func (s *Scheduler) IsFeedRunning(feedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[feedID]
	return ok
}

// CheckUpdate はフィードを1回チェックし、新着記事があれば配信する。
// タイマー発火と手動実行の両方で使用され、同一フィードのチェックは直列化される。
// フェッチ・パース・配信のエラーはすべてこの関数内で吸収され、ログに記録される。
// 無効化済みまたは存在しないフィードに対しては空の結果を返す。
func (s *Scheduler) CheckUpdate(ctx context.Context, feedID string) model.CheckOutcome {
	runMu := s.runLock(feedID)
	runMu.Lock()
	defer runMu.Unlock()

	start := time.Now()

	// タイマー起動後に設定が変わっている可能性があるため毎回取り直す
	f, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		s.logger.Error("チェック対象フィードの取得に失敗しました",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		return model.CheckOutcome{}
	}
	if f == nil || !f.Enabled {
		return model.CheckOutcome{}
	}

	parsed, err := s.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		s.recordFailure(ctx, f, start, err)
		return model.CheckOutcome{AdvancedWatermark: f.LastPublishWatermark}
	}

	outcome := feed.Detect(f.LastPublishWatermark, parsed.Items)

	// ウォーターマークは配信前に進める。配信失敗時の再送よりも
	// 重複通知の防止を優先する。
	f.LastPublishWatermark = outcome.AdvancedWatermark
	f.LastCheckedAt = time.Now()
	f.ConsecutiveErrors = 0
	if err := s.feedRepo.UpdateCheckState(ctx, f); err != nil {
		s.logger.Error("チェック状態の保存に失敗しました",
			slog.String("feed_id", f.ID),
			slog.String("error", err.Error()),
		)
	}

	if len(outcome.NewItems) > 0 {
		s.dispatcher.Dispatch(ctx, f, outcome.NewItems)
	}

	duration := time.Since(start)
	s.metrics.RecordCheck(true, duration)
	s.metrics.RecordNewItems(len(outcome.NewItems))

	s.logger.Info("フィードチェックが完了しました",
		slog.String("feed_id", f.ID),
		slog.String("feed_url", f.URL),
		slog.Int("new_items", len(outcome.NewItems)),
		slog.Int64("watermark", outcome.AdvancedWatermark),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return outcome
}

// recordFailure はチェック失敗時の状態更新とログ出力を行う。
// ウォーターマークは変更せず、連続エラー回数のみ加算する。
func (s *Scheduler) recordFailure(ctx context.Context, f *model.Feed, start time.Time, checkErr error) {
	f.ConsecutiveErrors++
	f.LastCheckedAt = time.Now()
	if err := s.feedRepo.UpdateCheckState(ctx, f); err != nil {
		s.logger.Error("チェック状態の保存に失敗しました",
			slog.String("feed_id", f.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordCheck(false, time.Since(start))

	s.logger.Error("フィードチェックに失敗しました",
		slog.String("feed_id", f.ID),
		slog.String("feed_url", f.URL),
		slog.Int("consecutive_errors", f.ConsecutiveErrors),
		slog.String("error", checkErr.Error()),
	)
}

// runLock はフィードのチェック直列化ロックを返す。
// ロックはタイマーの張り替えをまたいで同一フィードで共有される。
func (s *Scheduler) runLock(feedID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mu, ok := s.runLocks[feedID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.runLocks[feedID] = mu
	return mu
}
