package delivery

import (
	"fmt"
	"strings"

	"github.com/hitoshi/rsscast/internal/bot"
	"github.com/hitoshi/rsscast/internal/model"
)

// forwardSenderID は転送ノードの送信者として表示されるボットのユーザーID。
const forwardSenderID = "10000"

// maxSingleDescriptionRunes は通常メッセージに含める説明文の最大文字数。
const maxSingleDescriptionRunes = 200

// buildSingleMessage は記事1件分の通常メッセージを組み立てる。
func buildSingleMessage(f *model.Feed, item model.FeedItem) []bot.MessageSegment {
	var lines []string
	lines = append(lines, fmt.Sprintf("【%s】", f.Name))
	lines = append(lines, item.Title, "")

	if item.Description != "" {
		lines = append(lines, truncateRunes(item.Description, maxSingleDescriptionRunes), "")
	}
	if item.Link != "" {
		lines = append(lines, fmt.Sprintf("リンク: %s", item.Link))
	}
	if item.Author != "" {
		lines = append(lines, fmt.Sprintf("作者: %s", item.Author))
	}
	if t := formatTime(item.PublishedAt); t != "" {
		lines = append(lines, fmt.Sprintf("公開時刻: %s", t))
	}

	return []bot.MessageSegment{bot.TextSegment(strings.Join(lines, "\n"))}
}

// buildForwardNodes は新着バッチを合併転送ノードの列に変換する。
func buildForwardNodes(f *model.Feed, items []model.FeedItem) []bot.ForwardNode {
	template := f.ForwardTemplate
	if template == "" {
		template = DefaultForwardTemplate
	}

	nodes := make([]bot.ForwardNode, 0, len(items))
	for _, item := range items {
		text := RenderTextTemplate(template, f, item)
		nodes = append(nodes, bot.NewForwardNode(f.Name, forwardSenderID, []bot.MessageSegment{
			bot.TextSegment(text),
		}))
	}
	return nodes
}

// buildImageMessage はレンダリング済み画像を含むメッセージを組み立てる。
func buildImageMessage(f *model.Feed, imageBase64 string) []bot.MessageSegment {
	return []bot.MessageSegment{
		bot.TextSegment(fmt.Sprintf("【%s】更新があります", f.Name)),
		bot.ImageSegment("base64://" + imageBase64),
	}
}
