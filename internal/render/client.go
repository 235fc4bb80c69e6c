// Package render はHTMLから画像を生成するレンダリングサービスのクライアントを提供する。
// 画像配信モードで記事カードのスクリーンショットを取得するために使用する。
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// defaultViewportWidth は記事カードの描画幅（ピクセル）。
const defaultViewportWidth = 480

// renderRequest はレンダリングAPIへのリクエスト。
type renderRequest struct {
	HTML  string `json:"html"`
	Width int    `json:"width"`
}

// renderResponse はレンダリングAPIのレスポンス。
type renderResponse struct {
	Image   string `json:"image"`
	Message string `json:"message"`
}

// Client はレンダリングサービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// RenderHTML はHTMLをスクリーンショット画像に変換し、base64文字列を返す。
// レンダリングサービスが利用できない場合はエラーを返す。
// 呼び出し元はテキスト配信へのフォールバックを判断する。
func (c *Client) RenderHTML(ctx context.Context, htmlContent string) (string, error) {
	body, err := json.Marshal(renderRequest{
		HTML:  htmlContent,
		Width: defaultViewportWidth,
	})
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/render", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("レンダリングサービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("レンダリングサービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("レンダリングサービスがステータス %d を返しました", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result renderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if result.Image == "" {
		return "", fmt.Errorf("レンダリング結果が空です: %s", result.Message)
	}

	return result.Image, nil
}
