package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/rsscast/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用した分類リポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// FindByID は指定IDの分類を取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	category := &model.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM categories WHERE id = $1`, id,
	).Scan(&category.ID, &category.Name, &category.Color, &category.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("分類の取得に失敗しました: %w", err)
	}
	return category, nil
}

// ListAll は全分類を作成日時昇順で返す。
func (r *PostgresCategoryRepo) ListAll(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color, created_at FROM categories ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("分類一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		category := &model.Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.Color, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("分類一覧の読み取りに失敗しました: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("分類一覧の走査に失敗しました: %w", err)
	}

	return categories, nil
}

// Create は分類を作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, color, created_at) VALUES ($1, $2, $3, $4)`,
		category.ID, category.Name, category.Color, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("分類の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は分類を更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, category *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, color = $3 WHERE id = $1`,
		category.ID, category.Name, category.Color,
	)
	if err != nil {
		return fmt.Errorf("分類の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの分類を削除する。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("分類の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
