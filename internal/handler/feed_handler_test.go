package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rsscast/internal/feed"
	"github.com/hitoshi/rsscast/internal/model"
)

// --- モック定義 ---

// mockFeedService はFeedServiceInterfaceのモック実装。
type mockFeedService struct {
	createFn   func(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error)
	getFn      func(ctx context.Context, id string) (*model.Feed, error)
	listFn     func(ctx context.Context) ([]*model.Feed, error)
	updateFn   func(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error)
	deleteFn   func(ctx context.Context, id string) error
	testFeedFn func(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

func (m *mockFeedService) Create(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return nil, nil
}

func (m *mockFeedService) Get(ctx context.Context, id string) (*model.Feed, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockFeedService) List(ctx context.Context) ([]*model.Feed, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockFeedService) Update(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return nil, nil
}

func (m *mockFeedService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockFeedService) TestFeed(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
	if m.testFeedFn != nil {
		return m.testFeedFn(ctx, feedURL)
	}
	return nil, nil
}

// mockCheckRunner はCheckRunnerのモック実装。
type mockCheckRunner struct {
	checkUpdateFn func(ctx context.Context, feedID string) model.CheckOutcome
}

func (m *mockCheckRunner) CheckUpdate(ctx context.Context, feedID string) model.CheckOutcome {
	if m.checkUpdateFn != nil {
		return m.checkUpdateFn(ctx, feedID)
	}
	return model.CheckOutcome{}
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func sampleFeed() *model.Feed {
	return &model.Feed{
		ID:                    "feed-id-1",
		URL:                   "https://example.com/feed.xml",
		Name:                  "Example Feed",
		Enabled:               true,
		UpdateIntervalMinutes: 30,
		DeliveryMode:          model.DeliveryModeForward,
		Destinations:          []string{"123456"},
		LastPublishWatermark:  1700000000000,
		LastCheckedAt:         time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

// --- POST /api/feeds テスト ---

func TestFeedHandler_CreateFeed_Success(t *testing.T) {
	svc := &mockFeedService{
		createFn: func(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error) {
			if input.URL != "https://example.com/feed.xml" {
				t.Errorf("URL = %q, want %q", input.URL, "https://example.com/feed.xml")
			}
			if input.DeliveryMode != "forward" {
				t.Errorf("DeliveryMode = %q, want forward", input.DeliveryMode)
			}
			return sampleFeed(), nil
		},
	}

	h := NewFeedHandler(svc, &mockCheckRunner{})

	body := `{"url": "https://example.com/feed.xml", "delivery_mode": "forward", "destinations": ["123456"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.CreateFeed(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var res feedResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.ID != "feed-id-1" {
		t.Errorf("ID = %q, want feed-id-1", res.ID)
	}
	if res.LastPublishWatermark != 1700000000000 {
		t.Errorf("LastPublishWatermark = %d, want 1700000000000", res.LastPublishWatermark)
	}
}

func TestFeedHandler_CreateFeed_EmptyURL(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(`{"url": ""}`))
	w := httptest.NewRecorder()

	h.CreateFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	res := parseAPIErrorResponse(t, w)
	if res["code"] != model.ErrCodeInvalidURL {
		t.Errorf("code = %q, want %q", res["code"], model.ErrCodeInvalidURL)
	}
}

func TestFeedHandler_CreateFeed_InvalidJSON(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(`{invalid`))
	w := httptest.NewRecorder()

	h.CreateFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFeedHandler_CreateFeed_DuplicateURL(t *testing.T) {
	svc := &mockFeedService{
		createFn: func(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error) {
			return nil, model.NewDuplicateFeedURLError()
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	body := `{"url": "https://example.com/feed.xml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateFeed(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// --- GET /api/feeds/{id} テスト ---

func TestFeedHandler_GetFeed_NotFound(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, id string) (*model.Feed, error) {
			return nil, model.NewFeedNotFoundError(id)
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/missing", nil)
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	res := parseAPIErrorResponse(t, w)
	if res["code"] != model.ErrCodeFeedNotFound {
		t.Errorf("code = %q, want %q", res["code"], model.ErrCodeFeedNotFound)
	}
}

// --- PATCH /api/feeds/{id} テスト ---

func TestFeedHandler_UpdateFeed_PassesOnlyProvidedFields(t *testing.T) {
	svc := &mockFeedService{
		updateFn: func(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error) {
			if input.UpdateIntervalMinutes == nil || *input.UpdateIntervalMinutes != 15 {
				t.Errorf("UpdateIntervalMinutes = %v, want 15", input.UpdateIntervalMinutes)
			}
			if input.Name != nil {
				t.Errorf("Name should be nil when absent, got %v", *input.Name)
			}
			return sampleFeed(), nil
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	body := `{"update_interval_minutes": 15}`
	req := httptest.NewRequest(http.MethodPatch, "/api/feeds/feed-id-1", bytes.NewBufferString(body))
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.UpdateFeed(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestFeedHandler_UpdateFeed_InvalidInterval(t *testing.T) {
	svc := &mockFeedService{
		updateFn: func(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error) {
			return nil, model.NewInvalidIntervalError(3)
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	body := `{"update_interval_minutes": 3}`
	req := httptest.NewRequest(http.MethodPatch, "/api/feeds/feed-id-1", bytes.NewBufferString(body))
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.UpdateFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /api/feeds/{id} テスト ---

func TestFeedHandler_DeleteFeed_Success(t *testing.T) {
	var deletedID string
	svc := &mockFeedService{
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodDelete, "/api/feeds/feed-id-1", nil)
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.DeleteFeed(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deletedID != "feed-id-1" {
		t.Errorf("deletedID = %q, want feed-id-1", deletedID)
	}
}

// --- POST /api/feeds/{id}/check テスト ---

func TestFeedHandler_CheckFeed_ReturnsOutcome(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, id string) (*model.Feed, error) {
			return sampleFeed(), nil
		},
	}
	checker := &mockCheckRunner{
		checkUpdateFn: func(ctx context.Context, feedID string) model.CheckOutcome {
			if feedID != "feed-id-1" {
				t.Errorf("feedID = %q, want feed-id-1", feedID)
			}
			return model.CheckOutcome{
				NewItems: []model.FeedItem{
					{Title: "新着記事", Link: "https://example.com/1", PublishedAt: 1700000100000},
				},
				AdvancedWatermark: 1700000100000,
			}
		},
	}
	h := NewFeedHandler(svc, checker)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/feed-id-1/check", nil)
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.CheckFeed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res checkResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.NewItemCount != 1 {
		t.Errorf("NewItemCount = %d, want 1", res.NewItemCount)
	}
	if res.Watermark != 1700000100000 {
		t.Errorf("Watermark = %d, want 1700000100000", res.Watermark)
	}
}

func TestFeedHandler_CheckFeed_UnknownFeed(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, id string) (*model.Feed, error) {
			return nil, model.NewFeedNotFoundError(id)
		},
	}
	checker := &mockCheckRunner{
		checkUpdateFn: func(ctx context.Context, feedID string) model.CheckOutcome {
			t.Fatal("check should not run for an unknown feed")
			return model.CheckOutcome{}
		},
	}
	h := NewFeedHandler(svc, checker)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/missing/check", nil)
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.CheckFeed(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- POST /api/feeds/{id}/test テスト ---

func TestFeedHandler_TestFeed_LimitsPreviewToFiveItems(t *testing.T) {
	items := make([]model.FeedItem, 8)
	for i := range items {
		items[i] = model.FeedItem{Title: "記事", PublishedAt: int64(i)}
	}
	svc := &mockFeedService{
		getFn: func(ctx context.Context, id string) (*model.Feed, error) {
			return sampleFeed(), nil
		},
		testFeedFn: func(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
			return &model.ParsedFeed{Title: "Example Feed", Items: items}, nil
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/feed-id-1/test", nil)
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.TestFeed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res testFeedResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(res.Items))
	}
}

func TestFeedHandler_TestFeed_FetchFailure(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, id string) (*model.Feed, error) {
			return sampleFeed(), nil
		},
		testFeedFn: func(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
			return nil, model.NewFetchFailedError("connection refused")
		},
	}
	h := NewFeedHandler(svc, &mockCheckRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/feed-id-1/test", nil)
	req = withChiURLParam(req, "id", "feed-id-1")
	w := httptest.NewRecorder()

	h.TestFeed(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}
