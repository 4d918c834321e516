package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// ContentStorage implements the ContentStorage interface for Badger
type ContentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewContentStorage creates a new ContentStorage instance
func NewContentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ContentStorage {
	return &ContentStorage{
		db:     db,
		logger: logger,
	}
}

// SaveArticle upserts a published article row
func (s *ContentStorage) SaveArticle(ctx context.Context, article *models.PublishedArticle) error {
	if article.ID == "" {
		return fmt.Errorf("article ID is required")
	}
	if err := s.db.Store().Upsert(article.ID, article); err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

// GetArticle retrieves a published article by ID
func (s *ContentStorage) GetArticle(ctx context.Context, articleID string) (*models.PublishedArticle, error) {
	var article models.PublishedArticle
	err := s.db.Store().Get(articleID, &article)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("article not found: %s", articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

// GetClusterArticles returns every published article in a cluster, all languages
func (s *ContentStorage) GetClusterArticles(ctx context.Context, clusterSlug string) ([]*models.PublishedArticle, error) {
	var articles []*models.PublishedArticle
	err := s.db.Store().Find(&articles,
		badgerhold.Where("ClusterSlug").Eq(clusterSlug).Index("ClusterSlug"))
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster articles: %w", err)
	}
	return articles, nil
}

// SaveQA upserts a Q&A row
func (s *ContentStorage) SaveQA(ctx context.Context, item *models.QAItem) error {
	if item.ID == "" {
		return fmt.Errorf("Q&A ID is required")
	}
	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to save Q&A: %w", err)
	}
	return nil
}

// GetClusterQA fetches every Q&A row for a cluster in one query. Callers
// derive all cross-language counts from this single snapshot.
func (s *ContentStorage) GetClusterQA(ctx context.Context, clusterSlug string) ([]*models.QAItem, error) {
	var items []*models.QAItem
	err := s.db.Store().Find(&items,
		badgerhold.Where("ClusterSlug").Eq(clusterSlug).Index("ClusterSlug"))
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster Q&A: %w", err)
	}
	return items, nil
}

// DeleteQA removes a Q&A row
func (s *ContentStorage) DeleteQA(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.QAItem{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("Q&A not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete Q&A: %w", err)
	}
	return nil
}
