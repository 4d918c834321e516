package translation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// memContent is an in-memory ContentStorage. Reads return copies sorted by ID
// so tests see stable, store-like snapshots.
type memContent struct {
	mu       sync.Mutex
	articles map[string]models.PublishedArticle
	qa       map[string]models.QAItem
}

func newMemContent() *memContent {
	return &memContent{
		articles: make(map[string]models.PublishedArticle),
		qa:       make(map[string]models.QAItem),
	}
}

func (m *memContent) SaveArticle(_ context.Context, article *models.PublishedArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.ID] = *article
	return nil
}

func (m *memContent) GetArticle(_ context.Context, articleID string) (*models.PublishedArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, fmt.Errorf("article not found: %s", articleID)
	}
	copied := a
	return &copied, nil
}

func (m *memContent) GetClusterArticles(_ context.Context, clusterSlug string) ([]*models.PublishedArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PublishedArticle
	for id := range m.articles {
		if m.articles[id].ClusterSlug == clusterSlug {
			copied := m.articles[id]
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memContent) SaveQA(_ context.Context, item *models.QAItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qa[item.ID] = *item
	return nil
}

func (m *memContent) GetClusterQA(_ context.Context, clusterSlug string) ([]*models.QAItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.QAItem
	for id := range m.qa {
		if m.qa[id].ClusterSlug == clusterSlug {
			copied := m.qa[id]
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memContent) DeleteQA(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.qa, id)
	return nil
}

func (m *memContent) qaItem(id string) (models.QAItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.qa[id]
	return item, ok
}

func (m *memContent) article(id string) (models.PublishedArticle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	return a, ok
}

type qaGenCall struct {
	ArticleID string
	Count     int
}

type batchCall struct {
	Language  string
	BatchSize int
}

// fakeQAGen scripts both phases of the completion machine
type fakeQAGen struct {
	mu         sync.Mutex
	genCalls   []qaGenCall
	batchCalls []batchCall

	generate  func(article *models.PublishedArticle, count int) ([]models.QAItem, error)
	translate func(language string, batchSize int) (*interfaces.TranslationBatchResult, error)
}

func (f *fakeQAGen) GenerateQA(_ context.Context, article *models.PublishedArticle, count int) ([]models.QAItem, error) {
	f.mu.Lock()
	f.genCalls = append(f.genCalls, qaGenCall{ArticleID: article.ID, Count: count})
	f.mu.Unlock()
	if f.generate == nil {
		return nil, nil
	}
	return f.generate(article, count)
}

func (f *fakeQAGen) TranslateBatch(_ context.Context, _, targetLanguage string, batchSize int) (*interfaces.TranslationBatchResult, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, batchCall{Language: targetLanguage, BatchSize: batchSize})
	f.mu.Unlock()
	if f.translate == nil {
		return &interfaces.TranslationBatchResult{}, nil
	}
	return f.translate(targetLanguage, batchSize)
}

func (f *fakeQAGen) batchesFor(language string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.batchCalls {
		if c.Language == language {
			n++
		}
	}
	return n
}
