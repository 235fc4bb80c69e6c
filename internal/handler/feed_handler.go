// Package handler は管理APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rsscast/internal/feed"
	"github.com/hitoshi/rsscast/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	Create(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error)
	Get(ctx context.Context, id string) (*model.Feed, error)
	List(ctx context.Context) ([]*model.Feed, error)
	Update(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error)
	Delete(ctx context.Context, id string) error
	TestFeed(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

// CheckRunner は手動更新チェックのためのインターフェース。
type CheckRunner interface {
	CheckUpdate(ctx context.Context, feedID string) model.CheckOutcome
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
	checker CheckRunner
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, checker CheckRunner) *FeedHandler {
	return &FeedHandler{
		service: service,
		checker: checker,
	}
}

// createFeedRequest はフィード登録リクエストのボディ。
type createFeedRequest struct {
	URL                   string   `json:"url"`
	Name                  string   `json:"name"`
	CategoryID            string   `json:"category_id"`
	UpdateIntervalMinutes int      `json:"update_interval_minutes"`
	DeliveryMode          string   `json:"delivery_mode"`
	Destinations          []string `json:"destinations"`
	HTMLTemplate          string   `json:"html_template"`
	ForwardTemplate       string   `json:"forward_template"`
}

// updateFeedRequest はフィード更新リクエストのボディ。nilのフィールドは変更しない。
type updateFeedRequest struct {
	Name                  *string   `json:"name"`
	CategoryID            *string   `json:"category_id"`
	Enabled               *bool     `json:"enabled"`
	UpdateIntervalMinutes *int      `json:"update_interval_minutes"`
	DeliveryMode          *string   `json:"delivery_mode"`
	Destinations          *[]string `json:"destinations"`
	HTMLTemplate          *string   `json:"html_template"`
	ForwardTemplate       *string   `json:"forward_template"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID                    string   `json:"id"`
	URL                   string   `json:"url"`
	Name                  string   `json:"name"`
	CategoryID            string   `json:"category_id,omitempty"`
	Enabled               bool     `json:"enabled"`
	UpdateIntervalMinutes int      `json:"update_interval_minutes"`
	DeliveryMode          string   `json:"delivery_mode"`
	Destinations          []string `json:"destinations"`
	LastPublishWatermark  int64    `json:"last_publish_watermark"`
	LastCheckedAt         string   `json:"last_checked_at,omitempty"`
	ConsecutiveErrors     int      `json:"consecutive_errors"`
}

// checkResponse は手動更新チェックのAPIレスポンス。
type checkResponse struct {
	NewItemCount int                `json:"new_item_count"`
	Watermark    int64              `json:"watermark"`
	NewItems     []feedItemResponse `json:"new_items"`
}

// testFeedResponse はフィード取得テストのAPIレスポンス。
type testFeedResponse struct {
	Title string             `json:"title"`
	Link  string             `json:"link"`
	Items []feedItemResponse `json:"items"`
}

// feedItemResponse は記事のAPIレスポンス。
type feedItemResponse struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
	PublishedAt int64  `json:"published_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateFeed はフィード登録を処理する。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	f, err := h.service.Create(r.Context(), feed.CreateFeedInput{
		URL:                   req.URL,
		Name:                  req.Name,
		CategoryID:            req.CategoryID,
		UpdateIntervalMinutes: req.UpdateIntervalMinutes,
		DeliveryMode:          req.DeliveryMode,
		Destinations:          req.Destinations,
		HTMLTemplate:          req.HTMLTemplate,
		ForwardTemplate:       req.ForwardTemplate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedResponse(f))
}

// ListFeeds は全フィードの一覧を返す。
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		res = append(res, toFeedResponse(f))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetFeed はフィード詳細を取得する。
// GET /api/feeds/{id}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	f, err := h.service.Get(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(f))
}

// UpdateFeed はフィード設定を更新する。
// PATCH /api/feeds/{id}
func (h *FeedHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	var req updateFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	f, err := h.service.Update(r.Context(), feedID, feed.UpdateFeedInput{
		Name:                  req.Name,
		CategoryID:            req.CategoryID,
		Enabled:               req.Enabled,
		UpdateIntervalMinutes: req.UpdateIntervalMinutes,
		DeliveryMode:          req.DeliveryMode,
		Destinations:          req.Destinations,
		HTMLTemplate:          req.HTMLTemplate,
		ForwardTemplate:       req.ForwardTemplate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(f))
}

// DeleteFeed はフィードを削除する。
// DELETE /api/feeds/{id}
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckFeed は手動で更新チェックを1サイクル実行する。
// POST /api/feeds/{id}/check
func (h *FeedHandler) CheckFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	// 未知のIDはチェック側では空結果になるため、先に存在を確認する
	if _, err := h.service.Get(r.Context(), feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	outcome := h.checker.CheckUpdate(r.Context(), feedID)

	items := make([]feedItemResponse, 0, len(outcome.NewItems))
	for _, item := range outcome.NewItems {
		items = append(items, toFeedItemResponse(item))
	}

	writeJSON(w, http.StatusOK, checkResponse{
		NewItemCount: len(outcome.NewItems),
		Watermark:    outcome.AdvancedWatermark,
		NewItems:     items,
	})
}

// TestFeed はフィードを取得・パースし、先頭5件のプレビューを返す。
// ウォーターマークは更新せず、配信も行わない。
// POST /api/feeds/{id}/test
func (h *FeedHandler) TestFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	f, err := h.service.Get(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	parsed, err := h.service.TestFeed(r.Context(), f.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]feedItemResponse, 0, 5)
	for i, item := range parsed.Items {
		if i >= 5 {
			break
		}
		items = append(items, toFeedItemResponse(item))
	}

	writeJSON(w, http.StatusOK, testFeedResponse{
		Title: parsed.Title,
		Link:  parsed.Link,
		Items: items,
	})
}

// --- ヘルパー関数 ---

// toFeedResponse はmodel.FeedからAPIレスポンスに変換する。
func toFeedResponse(f *model.Feed) feedResponse {
	res := feedResponse{
		ID:                    f.ID,
		URL:                   f.URL,
		Name:                  f.Name,
		CategoryID:            f.CategoryID,
		Enabled:               f.Enabled,
		UpdateIntervalMinutes: f.UpdateIntervalMinutes,
		DeliveryMode:          string(f.DeliveryMode),
		Destinations:          f.Destinations,
		LastPublishWatermark:  f.LastPublishWatermark,
		ConsecutiveErrors:     f.ConsecutiveErrors,
	}
	if res.Destinations == nil {
		res.Destinations = []string{}
	}
	if !f.LastCheckedAt.IsZero() {
		res.LastCheckedAt = f.LastCheckedAt.Format(time.RFC3339)
	}
	return res
}

// toFeedItemResponse はmodel.FeedItemからAPIレスポンスに変換する。
func toFeedItemResponse(item model.FeedItem) feedItemResponse {
	return feedItemResponse{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Author:      item.Author,
		PublishedAt: item.PublishedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// invalidRequestError はリクエストボディ不正のエラーを返す。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeFeedNotFound, model.ErrCodeCategoryNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidURL, model.ErrCodeInvalidInterval, model.ErrCodeInvalidDeliveryMode:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDuplicateFeedURL:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
