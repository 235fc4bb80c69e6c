// Package bot はOneBot互換ボットAPIのクライアントを提供する。
// チャットグループへの通常メッセージと合併転送メッセージの送信を行う。
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MessageSegment はOneBotのメッセージセグメント。
type MessageSegment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// TextSegment はテキストセグメントを生成する。
func TextSegment(text string) MessageSegment {
	return MessageSegment{
		Type: "text",
		Data: map[string]any{"text": text},
	}
}

// ImageSegment は画像セグメントを生成する。
// fileにはURLまたは base64:// 形式のデータを指定できる。
func ImageSegment(file string) MessageSegment {
	return MessageSegment{
		Type: "image",
		Data: map[string]any{"file": file},
	}
}

// ForwardNode は合併転送メッセージの1ノード。
type ForwardNode struct {
	Type string          `json:"type"`
	Data ForwardNodeData `json:"data"`
}

// ForwardNodeData は転送ノードの表示名と本文。
type ForwardNodeData struct {
	Name    string           `json:"name"`
	UserID  string           `json:"uin"`
	Content []MessageSegment `json:"content"`
}

// NewForwardNode は転送ノードを生成する。
func NewForwardNode(name, userID string, content []MessageSegment) ForwardNode {
	return ForwardNode{
		Type: "node",
		Data: ForwardNodeData{
			Name:    name,
			UserID:  userID,
			Content: content,
		},
	}
}

// apiResponse はOneBot APIの共通レスポンス。
type apiResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
}

// Client はOneBot HTTP APIのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	endpoint    string
	accessToken string
}

// NewClient はClientの新しいインスタンスを生成する。
// accessTokenが空でない場合、全リクエストにBearerトークンを付与する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, accessToken string) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		endpoint:    endpoint,
		accessToken: accessToken,
	}
}

// SendGroupMessage はグループに通常メッセージを送信する。
func (c *Client) SendGroupMessage(ctx context.Context, groupID string, segments []MessageSegment) error {
	payload := map[string]any{
		"message_type": "group",
		"group_id":     groupID,
		"message":      segments,
	}
	return c.post(ctx, "/send_msg", payload)
}

// SendGroupForward はグループに合併転送メッセージを送信する。
func (c *Client) SendGroupForward(ctx context.Context, groupID string, nodes []ForwardNode) error {
	payload := map[string]any{
		"group_id": groupID,
		"messages": nodes,
	}
	return c.post(ctx, "/send_group_forward_msg", payload)
}

// post はOneBotアクションをJSONで呼び出し、retcodeを検査する。
func (c *Client) post(ctx context.Context, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ボットAPIの呼び出しに失敗しました",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ボットAPIがエラーステータスを返しました",
			slog.String("action", action),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("ボットAPIがステータス %d を返しました", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if result.Retcode != 0 {
		c.logger.Error("ボットAPIがエラーを返しました",
			slog.String("action", action),
			slog.Int("retcode", result.Retcode),
			slog.String("message", result.Message),
		)
		return fmt.Errorf("ボットAPIエラー: retcode=%d message=%s", result.Retcode, result.Message)
	}

	return nil
}
