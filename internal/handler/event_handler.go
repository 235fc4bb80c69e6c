package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rsscast/internal/command"
)

// CommandRouter はボットイベントからのコマンド処理のインターフェース。
type CommandRouter interface {
	HandleMessage(ctx context.Context, event command.Event)
}

// EventHandler はボットからのイベントWebhookを受け付けるHTTPハンドラー。
type EventHandler struct {
	router CommandRouter
	logger *slog.Logger
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(router CommandRouter, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		router: router,
		logger: logger,
	}
}

// botEvent はOneBotのメッセージイベントのボディ。
// group_idは数値で届くため、json.Numberで受けて文字列に正規化する。
type botEvent struct {
	PostType    string      `json:"post_type"`
	MessageType string      `json:"message_type"`
	GroupID     json.Number `json:"group_id"`
	RawMessage  string      `json:"raw_message"`
}

// HandleEvent はボットイベントを受け付け、メッセージイベントをコマンドルーターへ渡す。
// コマンド処理はフィード取得を伴い時間がかかるため、非同期に実行して即座に応答する。
// POST /event
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event botEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if event.PostType != "message" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("イベント処理でpanicが発生しました", slog.Any("panic", rec))
			}
		}()
		h.router.HandleMessage(context.Background(), command.Event{
			MessageType: event.MessageType,
			GroupID:     event.GroupID.String(),
			RawMessage:  event.RawMessage,
		})
	}()

	w.WriteHeader(http.StatusNoContent)
}
