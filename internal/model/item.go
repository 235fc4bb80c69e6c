package model

// FeedItem はパース済みフィードの1記事を正規化した形。
// PublishedAt はエポックミリ秒。ソースが日付を提供しない場合は0となり、
// その記事は初回チェック時のみ新着として扱われる。
type FeedItem struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	ImageURL    string
	PublishedAt int64
}

// ParsedFeed はフェッチ+パースの正規化済み出力。
type ParsedFeed struct {
	Title       string
	Link        string
	Description string
	Items       []FeedItem
}

// CheckOutcome は1回のチェックサイクルにおける更新検知の結果。
// NewItems は公開時刻の降順（同時刻は元の相対順を維持）。
// AdvancedWatermark は前回ウォーターマークとNewItems中の最大公開時刻のうち大きい方。
type CheckOutcome struct {
	NewItems          []FeedItem
	AdvancedWatermark int64
}
