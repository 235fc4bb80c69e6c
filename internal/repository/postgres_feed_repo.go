package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/rsscast/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// feedColumns はfeedsテーブルのSELECT列。全取得系クエリで共有する。
const feedColumns = `id, url, name, category_id, enabled, update_interval_minutes,
	        delivery_mode, destinations, html_template, forward_template,
	        last_publish_watermark, last_checked_at, consecutive_errors,
	        created_at, updated_at`

// scanFeed は1行をmodel.Feedに読み取る。
func scanFeed(scan func(dest ...any) error) (*model.Feed, error) {
	feed := &model.Feed{}
	var categoryID, htmlTemplate, forwardTemplate sql.NullString
	var lastCheckedAt sql.NullTime
	var destinations pq.StringArray

	err := scan(
		&feed.ID, &feed.URL, &feed.Name, &categoryID, &feed.Enabled,
		&feed.UpdateIntervalMinutes, &feed.DeliveryMode, &destinations,
		&htmlTemplate, &forwardTemplate,
		&feed.LastPublishWatermark, &lastCheckedAt, &feed.ConsecutiveErrors,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.CategoryID = nullStringValue(categoryID)
	feed.HTMLTemplate = nullStringValue(htmlTemplate)
	feed.ForwardTemplate = nullStringValue(forwardTemplate)
	feed.Destinations = []string(destinations)
	if lastCheckedAt.Valid {
		feed.LastCheckedAt = lastCheckedAt.Time
	}

	return feed, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id)

	feed, err := scanFeed(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// FindByURL はフィードURLでフィードを検索する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByURL(ctx context.Context, url string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE url = $1`, url)

	feed, err := scanFeed(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによるフィードの検索に失敗しました: %w", err)
	}
	return feed, nil
}

// ListAll は全フィードをname昇順で返す。
func (r *PostgresFeedRepo) ListAll(ctx context.Context) ([]*model.Feed, error) {
	return r.list(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY name ASC`)
}

// ListEnabled は有効なフィードのみをname昇順で返す。
func (r *PostgresFeedRepo) ListEnabled(ctx context.Context) ([]*model.Feed, error) {
	return r.list(ctx, `SELECT `+feedColumns+` FROM feeds WHERE enabled = TRUE ORDER BY name ASC`)
}

func (r *PostgresFeedRepo) list(ctx context.Context, query string) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("フィード一覧の読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, url, name, category_id, enabled, update_interval_minutes,
		                    delivery_mode, destinations, html_template, forward_template,
		                    last_publish_watermark, last_checked_at, consecutive_errors,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		feed.ID, feed.URL, feed.Name, nullString(feed.CategoryID), feed.Enabled,
		feed.UpdateIntervalMinutes, feed.DeliveryMode, pq.Array(feed.Destinations),
		nullString(feed.HTMLTemplate), nullString(feed.ForwardTemplate),
		feed.LastPublishWatermark, nullTime(feed.LastCheckedAt), feed.ConsecutiveErrors,
		feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はフィードの設定フィールドを更新する。
func (r *PostgresFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    name = $2, category_id = $3, enabled = $4,
		    update_interval_minutes = $5, delivery_mode = $6, destinations = $7,
		    html_template = $8, forward_template = $9, updated_at = $10
		 WHERE id = $1`,
		feed.ID, feed.Name, nullString(feed.CategoryID), feed.Enabled,
		feed.UpdateIntervalMinutes, feed.DeliveryMode, pq.Array(feed.Destinations),
		nullString(feed.HTMLTemplate), nullString(feed.ForwardTemplate), feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのフィードを削除する。
func (r *PostgresFeedRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// UpdateCheckState はチェックサイクルの結果を永続化する。
func (r *PostgresFeedRepo) UpdateCheckState(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    last_publish_watermark = $2,
		    last_checked_at = $3,
		    consecutive_errors = $4,
		    updated_at = now()
		 WHERE id = $1`,
		feed.ID,
		feed.LastPublishWatermark,
		nullTime(feed.LastCheckedAt),
		feed.ConsecutiveErrors,
	)
	if err != nil {
		return fmt.Errorf("チェック状態の更新に失敗しました: %w", err)
	}
	return nil
}

// ClearCategoryID は指定分類に属する全フィードの分類を外す。
func (r *PostgresFeedRepo) ClearCategoryID(ctx context.Context, categoryID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET category_id = NULL, updated_at = now() WHERE category_id = $1`,
		categoryID,
	)
	if err != nil {
		return fmt.Errorf("フィード分類の解除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime はゼロ値のtime.Timeをsql.NullTimeに変換する。
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
