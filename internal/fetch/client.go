// Package fetch はフィードのHTTP取得とパースを提供する。
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/rsscast/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// ContentSanitizer は記事コンテンツのサニタイズのインターフェース。
type ContentSanitizer interface {
	StripText(rawHTML string) string
	SanitizeHTML(rawHTML string) string
}

// Client はフィードのHTTPフェッチとgofeedによるパースを行う。
// 条件付きGET（ETag/Last-Modified）は使用しない。更新検出は
// ウォーターマーク比較で行うため、毎回全文を取得してパースする。
type Client struct {
	ssrfGuard   SSRFValidator
	sanitizer   ContentSanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	ssrfGuard SSRFValidator,
	sanitizer ContentSanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Client {
	return &Client{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はフィードURLを取得してパースし、正規化済みのParsedFeedを返す。
// SSRF検証、HTTPフェッチ、パースのいずれかに失敗した場合はエラーを返す。
// リトライは行わない。失敗したチェックは次の周期で再試行される。
func (c *Client) Fetch(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
	start := time.Now()

	if err := c.ssrfGuard.ValidateURL(feedURL); err != nil {
		c.logger.Warn("SSRF検証に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	client := c.ssrfGuard.NewSafeClient(c.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "RSSCast/1.0 Feed Notifier")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		c.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}

	result := &model.ParsedFeed{
		Title:       parsedFeed.Title,
		Link:        parsedFeed.Link,
		Description: c.sanitizer.StripText(parsedFeed.Description),
		Items:       c.convertItems(parsedFeed.Items),
	}

	c.logger.Info("フィードの取得が完了しました",
		slog.String("feed_url", feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(result.Items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// convertItems はgofeedの記事をmodel.FeedItemに変換して正規化する。
func (c *Client) convertItems(items []*gofeed.Item) []model.FeedItem {
	converted := make([]model.FeedItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		feedItem := model.FeedItem{
			Title:   item.Title,
			Link:    item.Link,
			Content: item.Content,
		}

		// Contentが空の場合はDescriptionを使用
		if feedItem.Content == "" && item.Description != "" {
			feedItem.Content = item.Description
		}

		// チャット向け説明文はタグを除去したプレーンテキスト
		feedItem.Description = c.sanitizer.StripText(item.Description)
		if feedItem.Description == "" {
			feedItem.Description = c.sanitizer.StripText(item.Content)
		}

		// タイトルがない記事はプレースホルダで補完
		if strings.TrimSpace(feedItem.Title) == "" {
			feedItem.Title = "(no title)"
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if feedItem.Link == "" && item.GUID != "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			feedItem.Link = item.GUID
		}

		// 著者情報
		if item.Author != nil {
			feedItem.Author = item.Author.Name
		}
		if feedItem.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			feedItem.Author = item.Authors[0].Name
		}

		// 公開日時はエポックミリ秒に正規化する。
		// PublishedがなければUpdatedで代用し、どちらもなければ0のまま。
		if item.PublishedParsed != nil {
			feedItem.PublishedAt = item.PublishedParsed.UnixMilli()
		} else if item.UpdatedParsed != nil {
			feedItem.PublishedAt = item.UpdatedParsed.UnixMilli()
		}

		feedItem.ImageURL = extractImageURL(item)

		converted = append(converted, feedItem)
	}

	return converted
}
