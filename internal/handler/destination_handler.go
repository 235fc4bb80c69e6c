package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// DestinationHandler は配信先グループ設定のHTTPハンドラー。
// レコードが存在しないグループは有効として扱うため、一覧には
// 明示的に設定変更されたグループのみが並ぶ。
type DestinationHandler struct {
	repo repository.DestinationRepository
}

// NewDestinationHandler はDestinationHandlerを生成する。
func NewDestinationHandler(repo repository.DestinationRepository) *DestinationHandler {
	return &DestinationHandler{repo: repo}
}

// destinationRequest は配信先の有効化状態の更新リクエストのボディ。
type destinationRequest struct {
	Enabled bool `json:"enabled"`
}

// destinationResponse は配信先設定のAPIレスポンス。
type destinationResponse struct {
	ID        string `json:"id"`
	Enabled   bool   `json:"enabled"`
	UpdatedAt string `json:"updated_at"`
}

// ListDestinations は保存済みの配信先設定の一覧を返す。
// GET /api/destinations
func (h *DestinationHandler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	dests, err := h.repo.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]destinationResponse, 0, len(dests))
	for _, d := range dests {
		res = append(res, destinationResponse{
			ID:        d.ID,
			Enabled:   d.Enabled,
			UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// UpsertDestination は配信先の有効化状態を設定する。
// PUT /api/destinations/{id}
func (h *DestinationHandler) UpsertDestination(w http.ResponseWriter, r *http.Request) {
	destID := chi.URLParam(r, "id")

	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	dest := &model.Destination{
		ID:        destID,
		Enabled:   req.Enabled,
		UpdatedAt: time.Now(),
	}
	if err := h.repo.Upsert(r.Context(), dest); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, destinationResponse{
		ID:        dest.ID,
		Enabled:   dest.Enabled,
		UpdatedAt: dest.UpdatedAt.Format(time.RFC3339),
	})
}
