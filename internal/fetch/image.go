package fetch

import (
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// extractImageURL は記事から代表画像のURLを抽出する。
// 優先順位: enclosure → media:content/media:thumbnail拡張 → itemのimage →
// 記事本文HTML内の最初のimgタグ。見つからない場合は空文字列を返す。
func extractImageURL(item *gofeed.Item) string {
	// enclosure（podcastやRSS 2.0の添付画像）
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	// media RSS拡張（media:content, media:thumbnail）
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	return firstImgSrc(content)
}

// firstImgSrc はHTML断片から最初のimgタグのsrc属性を返す。
// パースに失敗した場合やimgタグがない場合は空文字列を返す。
func firstImgSrc(fragment string) string {
	if fragment == "" || !strings.Contains(fragment, "<img") {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return ""
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		if token.Data != "img" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key == "src" && (strings.HasPrefix(attr.Val, "http://") || strings.HasPrefix(attr.Val, "https://")) {
				return attr.Val
			}
		}
	}
}
