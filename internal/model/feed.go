// Package model はドメインモデルを定義する。
package model

import "time"

// Feed は1件のRSS/Atom購読設定を表す。
// LastPublishWatermark は配信済み記事の最大公開時刻（エポックミリ秒）で、
// 更新検知の境界となる。0は未チェックを意味する。
type Feed struct {
	ID                    string
	URL                   string
	Name                  string
	CategoryID            string
	Enabled               bool
	UpdateIntervalMinutes int
	DeliveryMode          DeliveryMode
	Destinations          []string
	HTMLTemplate          string
	ForwardTemplate       string
	LastPublishWatermark  int64
	LastCheckedAt         time.Time
	ConsecutiveErrors     int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DeliveryMode は新着記事の配信方式を表す。
type DeliveryMode string

const (
	// DeliveryModeSingle は記事1件につき1メッセージを送信する。
	DeliveryModeSingle DeliveryMode = "single"
	// DeliveryModeForward は新着バッチを1つの合併転送メッセージとして送信する。
	DeliveryModeForward DeliveryMode = "forward"
	// DeliveryModeImage は記事をHTMLテンプレートに描画し、スクリーンショット画像として送信する。
	DeliveryModeImage DeliveryMode = "image"
)

// Valid は配信方式が定義済みのいずれかであるかを返す。
func (m DeliveryMode) Valid() bool {
	switch m {
	case DeliveryModeSingle, DeliveryModeForward, DeliveryModeImage:
		return true
	}
	return false
}

// MinUpdateIntervalMinutes はフィードのチェック間隔の下限（分）。
// これ未満の間隔は設定変更の境界で拒否される。
const MinUpdateIntervalMinutes = 5

// Category はフィードの分類を表す。
type Category struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}

// Destination は配信先チャットグループの有効化状態を表す。
// IDはボット側のグループ識別子で、本システムからは不透明な文字列として扱う。
type Destination struct {
	ID        string
	Enabled   bool
	UpdatedAt time.Time
}
