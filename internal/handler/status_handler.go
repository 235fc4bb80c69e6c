package handler

import (
	"net/http"
	"time"
)

// SchedulerStatus はスケジューラの稼働状態参照のインターフェース。
type SchedulerStatus interface {
	ActiveFeedIDs() []string
	IsFeedRunning(feedID string) bool
}

// StatusHandler はシステム稼働状況のHTTPハンドラー。
type StatusHandler struct {
	service   FeedServiceInterface
	scheduler SchedulerStatus
	startedAt time.Time
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service FeedServiceInterface, scheduler SchedulerStatus) *StatusHandler {
	return &StatusHandler{
		service:   service,
		scheduler: scheduler,
		startedAt: time.Now(),
	}
}

// statusResponse は稼働状況のAPIレスポンス。
type statusResponse struct {
	TotalFeeds    int              `json:"total_feeds"`
	EnabledFeeds  int              `json:"enabled_feeds"`
	ActiveTimers  int              `json:"active_timers"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Feeds         []feedStatusItem `json:"feeds"`
}

// feedStatusItem はフィードごとの稼働状況。
type feedStatusItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	Running           bool   `json:"running"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastCheckedAt     string `json:"last_checked_at,omitempty"`
}

// GetStatus はスケジューラとフィードの稼働状況を返す。
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := statusResponse{
		TotalFeeds:    len(feeds),
		ActiveTimers:  len(h.scheduler.ActiveFeedIDs()),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Feeds:         make([]feedStatusItem, 0, len(feeds)),
	}

	for _, f := range feeds {
		if f.Enabled {
			res.EnabledFeeds++
		}
		item := feedStatusItem{
			ID:                f.ID,
			Name:              f.Name,
			Enabled:           f.Enabled,
			Running:           h.scheduler.IsFeedRunning(f.ID),
			ConsecutiveErrors: f.ConsecutiveErrors,
		}
		if !f.LastCheckedAt.IsZero() {
			item.LastCheckedAt = f.LastCheckedAt.Format(time.RFC3339)
		}
		res.Feeds = append(res.Feeds, item)
	}

	writeJSON(w, http.StatusOK, res)
}

// GetHealth はヘルスチェックに応答する。
// GET /health
func (h *StatusHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
