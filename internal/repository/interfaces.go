// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/rsscast/internal/model"
)

// FeedRepository はフィード購読設定の永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// FindByURL はフィードURLでフィードを検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Feed, error)

	// ListAll は全フィードをname昇順で返す。
	ListAll(ctx context.Context) ([]*model.Feed, error)

	// ListEnabled は有効なフィードのみをname昇順で返す。
	// スケジューラの起動時に全タイマーを張るために使用する。
	ListEnabled(ctx context.Context) ([]*model.Feed, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// Update はフィードの設定フィールドを更新する。
	// チェック状態（ウォーターマーク、エラー回数）はUpdateCheckStateが担当する。
	Update(ctx context.Context, feed *model.Feed) error

	// Delete は指定IDのフィードを削除する。
	Delete(ctx context.Context, id string) error

	// UpdateCheckState はチェックサイクルの結果を永続化する。
	// last_publish_watermark、last_checked_at、consecutive_errorsを1文で更新する。
	// チェックはフィードごとに直列化されているため、read-modify-writeの競合は発生しない。
	UpdateCheckState(ctx context.Context, feed *model.Feed) error

	// ClearCategoryID は指定分類に属する全フィードの分類を外す。
	// 分類削除時に使用する。
	ClearCategoryID(ctx context.Context, categoryID string) error
}

// CategoryRepository はフィード分類の永続化インターフェース。
type CategoryRepository interface {
	// FindByID は指定IDの分類を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// ListAll は全分類を作成日時昇順で返す。
	ListAll(ctx context.Context) ([]*model.Category, error)

	// Create は分類を作成する。
	Create(ctx context.Context, category *model.Category) error

	// Update は分類を更新する。
	Update(ctx context.Context, category *model.Category) error

	// Delete は指定IDの分類を削除する。
	Delete(ctx context.Context, id string) error
}

// DestinationRepository は配信先グループ設定の永続化インターフェース。
// レコードが存在しないグループは有効として扱う（明示的に無効化されたもののみ保存する）。
type DestinationRepository interface {
	// FindByID は指定IDの配信先設定を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Destination, error)

	// ListAll は保存済みの配信先設定を返す。
	ListAll(ctx context.Context) ([]*model.Destination, error)

	// Upsert は配信先の有効化状態を冪等に保存する。
	Upsert(ctx context.Context, dest *model.Destination) error
}
