// Package delivery は新着記事のチャットグループへの配信を提供する。
// single / forward / image の3配信方式とテンプレート描画を含む。
package delivery

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/rsscast/internal/model"
)

// DefaultForwardTemplate は転送ノード本文の組み込みテンプレート。
// フィードごとにForwardTemplateで上書きできる。
const DefaultForwardTemplate = `【{feedName}】
{title}
{description}
リンク: {link}
作者: {author} | 時刻: {time}`

// maxDescriptionRunes は配信メッセージに含める説明文の最大文字数。
const maxDescriptionRunes = 300

// templateVariables はテンプレート置換に使用する変数の集合。
type templateVariables struct {
	FeedName    string
	FeedURL     string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	PubDate     string
	Image       string
}

// buildVariables はフィードと記事からテンプレート変数を構築する。
func buildVariables(f *model.Feed, item model.FeedItem) templateVariables {
	return templateVariables{
		FeedName:    f.Name,
		FeedURL:     f.URL,
		Title:       item.Title,
		Link:        item.Link,
		Description: truncateRunes(item.Description, maxDescriptionRunes),
		Content:     item.Content,
		Author:      item.Author,
		PubDate:     formatTime(item.PublishedAt),
		Image:       item.ImageURL,
	}
}

// RenderTextTemplate は {placeholder} 形式のテンプレートを描画する。
// 対応プレースホルダ: {feedName} {title} {description} {link} {author} {time}
func RenderTextTemplate(template string, f *model.Feed, item model.FeedItem) string {
	vars := buildVariables(f, item)
	replacer := strings.NewReplacer(
		"{feedName}", vars.FeedName,
		"{title}", vars.Title,
		"{description}", vars.Description,
		"{link}", vars.Link,
		"{author}", vars.Author,
		"{time}", vars.PubDate,
	)
	return replacer.Replace(template)
}

var (
	htmlVarPattern    = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
	htmlIfPattern     = regexp.MustCompile(`(?s)\{\{\s*#if\s+(\w+)\s*\}\}(.*?)\{\{\s*/if\s*\}\}`)
	htmlUnlessPattern = regexp.MustCompile(`(?s)\{\{\s*#unless\s+(\w+)\s*\}\}(.*?)\{\{\s*/unless\s*\}\}`)
)

// RenderHTMLTemplate は {{variable}} 形式のHTMLテンプレートを描画する。
// 変数値はHTMLエスケープされる。{{#if x}}...{{/if}} と {{#unless x}}...{{/unless}}
// の条件ブロックに対応する。
func RenderHTMLTemplate(template string, f *model.Feed, item model.FeedItem) string {
	vars := buildVariables(f, item)
	values := map[string]string{
		"feedName":    vars.FeedName,
		"feedUrl":     vars.FeedURL,
		"title":       vars.Title,
		"link":        vars.Link,
		"description": vars.Description,
		"content":     vars.Content,
		"author":      vars.Author,
		"pubDate":     vars.PubDate,
		"image":       vars.Image,
	}

	// 条件ブロックを先に解決してから変数を埋める
	result := htmlIfPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := htmlIfPattern.FindStringSubmatch(match)
		if values[groups[1]] != "" {
			return groups[2]
		}
		return ""
	})
	result = htmlUnlessPattern.ReplaceAllStringFunc(result, func(match string) string {
		groups := htmlUnlessPattern.FindStringSubmatch(match)
		if values[groups[1]] == "" {
			return groups[2]
		}
		return ""
	})

	return htmlVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		groups := htmlVarPattern.FindStringSubmatch(match)
		if value, ok := values[groups[1]]; ok {
			return html.EscapeString(value)
		}
		return match
	})
}

// truncateRunes は文字列をマルチバイト安全にn文字へ切り詰める。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// formatTime はエポックミリ秒をローカル時刻の文字列に整形する。0は空文字列。
func formatTime(epochMillis int64) string {
	if epochMillis == 0 {
		return ""
	}
	return time.UnixMilli(epochMillis).Local().Format("2006/01/02 15:04")
}
