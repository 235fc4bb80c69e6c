// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 管理APIおよびチャットコマンドに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, delivery, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFeedNotFound        = "FEED_NOT_FOUND"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeParseFailed         = "PARSE_FAILED"
	ErrCodeInvalidInterval     = "INVALID_INTERVAL"
	ErrCodeInvalidDeliveryMode = "INVALID_DELIVERY_MODE"
	ErrCodeCategoryNotFound    = "CATEGORY_NOT_FOUND"
	ErrCodeDuplicateFeedURL    = "DUPLICATE_FEED_URL"
)

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる正しいURLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewInvalidIntervalError はチェック間隔が無効な場合のエラーを生成する。
func NewInvalidIntervalError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInterval,
		Message:  fmt.Sprintf("無効なチェック間隔です: %d分", minutes),
		Category: "validation",
		Action:   fmt.Sprintf("チェック間隔は%d分以上で指定してください。", MinUpdateIntervalMinutes),
	}
}

// NewInvalidDeliveryModeError は配信方式が無効な場合のエラーを生成する。
func NewInvalidDeliveryModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDeliveryMode,
		Message:  fmt.Sprintf("無効な配信方式です: %s", mode),
		Category: "validation",
		Action:   "配信方式には single、forward、image のいずれかを指定してください。",
	}
}

// NewCategoryNotFoundError は分類未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定された分類が見つかりません: %s", categoryID),
		Category: "feed",
		Action:   "分類IDを確認してください。",
	}
}

// NewDuplicateFeedURLError は同一URLのフィードが既に存在する場合のエラーを生成する。
func NewDuplicateFeedURLError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFeedURL,
		Message:  "このURLのフィードは既に登録されています。",
		Category: "feed",
		Action:   "フィード一覧から該当フィードを確認してください。",
	}
}
