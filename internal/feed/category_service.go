package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// CategoryService はフィード分類のユースケースを提供する。
type CategoryService struct {
	categoryRepo repository.CategoryRepository
	feedRepo     repository.FeedRepository
	logger       *slog.Logger
}

// NewCategoryService はCategoryServiceの新しいインスタンスを生成する。
func NewCategoryService(
	categoryRepo repository.CategoryRepository,
	feedRepo repository.FeedRepository,
	logger *slog.Logger,
) *CategoryService {
	return &CategoryService{
		categoryRepo: categoryRepo,
		feedRepo:     feedRepo,
		logger:       logger,
	}
}

// Create は分類を作成する。
func (s *CategoryService) Create(ctx context.Context, name, color string) (*model.Category, error) {
	category := &model.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now(),
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// List は全分類を返す。
func (s *CategoryService) List(ctx context.Context) ([]*model.Category, error) {
	return s.categoryRepo.ListAll(ctx)
}

// Update は分類の名前と色を更新する。
func (s *CategoryService) Update(ctx context.Context, id, name, color string) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}

	if name != "" {
		category.Name = name
	}
	if color != "" {
		category.Color = color
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete は分類を削除する。所属フィードは未分類に戻り、削除はされない。
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return model.NewCategoryNotFoundError(id)
	}

	if err := s.feedRepo.ClearCategoryID(ctx, id); err != nil {
		return err
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("分類を削除しました",
		slog.String("category_id", id),
		slog.String("name", category.Name),
	)

	return nil
}
