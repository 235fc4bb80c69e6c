package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/rsscast/internal/model"
)

// PostgresDestinationRepo はPostgreSQLを使用した配信先リポジトリ。
type PostgresDestinationRepo struct {
	db *sql.DB
}

// NewPostgresDestinationRepo はPostgresDestinationRepoを生成する。
func NewPostgresDestinationRepo(db *sql.DB) *PostgresDestinationRepo {
	return &PostgresDestinationRepo{db: db}
}

// FindByID は指定IDの配信先設定を取得する。見つからない場合はnilを返す。
func (r *PostgresDestinationRepo) FindByID(ctx context.Context, id string) (*model.Destination, error) {
	dest := &model.Destination{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, enabled, updated_at FROM destinations WHERE id = $1`, id,
	).Scan(&dest.ID, &dest.Enabled, &dest.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("配信先設定の取得に失敗しました: %w", err)
	}
	return dest, nil
}

// ListAll は保存済みの配信先設定を返す。
func (r *PostgresDestinationRepo) ListAll(ctx context.Context) ([]*model.Destination, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, enabled, updated_at FROM destinations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("配信先一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var dests []*model.Destination
	for rows.Next() {
		dest := &model.Destination{}
		if err := rows.Scan(&dest.ID, &dest.Enabled, &dest.UpdatedAt); err != nil {
			return nil, fmt.Errorf("配信先一覧の読み取りに失敗しました: %w", err)
		}
		dests = append(dests, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信先一覧の走査に失敗しました: %w", err)
	}

	return dests, nil
}

// Upsert は配信先の有効化状態を冪等に保存する。
func (r *PostgresDestinationRepo) Upsert(ctx context.Context, dest *model.Destination) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO destinations (id, enabled, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`,
		dest.ID, dest.Enabled,
	)
	if err != nil {
		return fmt.Errorf("配信先設定の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DestinationRepository = (*PostgresDestinationRepo)(nil)
