package fetch

import (
	"testing"

	"github.com/mmcdole/gofeed"
)

// TestFirstImgSrc はHTML断片からのimg抽出をテストする。
func TestFirstImgSrc(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{
			name:     "最初のimgのsrcを返す",
			fragment: `<p>本文</p><img src="https://example.com/a.png"><img src="https://example.com/b.png">`,
			want:     "https://example.com/a.png",
		},
		{
			name:     "imgがなければ空文字列",
			fragment: "<p>本文だけ</p>",
			want:     "",
		},
		{
			name:     "http以外のスキームは無視する",
			fragment: `<img src="data:image/png;base64,abc">`,
			want:     "",
		},
		{
			name:     "空文字列は空文字列",
			fragment: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstImgSrc(tt.fragment)
			if got != tt.want {
				t.Errorf("firstImgSrc(%q) = %q, want %q", tt.fragment, got, tt.want)
			}
		})
	}
}

// TestExtractImageURL_Enclosure はenclosure画像が優先されることをテストする。
func TestExtractImageURL_Enclosure(t *testing.T) {
	item := &gofeed.Item{
		Content: `<img src="https://example.com/inline.png">`,
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://example.com/audio.mp3", Type: "audio/mpeg"},
			{URL: "https://example.com/cover.jpg", Type: "image/jpeg"},
		},
	}

	got := extractImageURL(item)
	if got != "https://example.com/cover.jpg" {
		t.Errorf("expected enclosure image, got %q", got)
	}
}

// TestExtractImageURL_ContentFallback は本文中のimgがフォールバックとして使われることをテストする。
func TestExtractImageURL_ContentFallback(t *testing.T) {
	item := &gofeed.Item{
		Content: `<p>本文</p><img src="https://example.com/photo.png">`,
	}

	got := extractImageURL(item)
	if got != "https://example.com/photo.png" {
		t.Errorf("expected content image, got %q", got)
	}
}

// TestExtractImageURL_NoImage は画像がない記事で空文字列を返すことをテストする。
func TestExtractImageURL_NoImage(t *testing.T) {
	item := &gofeed.Item{
		Title:       "画像なし記事",
		Description: "テキストだけ",
	}

	if got := extractImageURL(item); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
