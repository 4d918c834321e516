// -----------------------------------------------------------------------
// Repair - Idempotent hreflang/Q&A linkage repair operations
// -----------------------------------------------------------------------

package translation

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// RepairReport describes what a repair operation found and, unless running
// dry, changed. Re-running a repair on an already-consistent cluster reports
// zero findings.
type RepairReport struct {
	Operation string   `json:"operation"`
	DryRun    bool     `json:"dry_run"`
	Found     int      `json:"found"`
	Changed   int      `json:"changed"`
	Details   []string `json:"details,omitempty"`
}

// Repairer fixes broken hreflang and Q&A linkage for a published cluster.
// Every operation is idempotent and dry-run capable.
type Repairer struct {
	content        interfaces.ContentStorage
	sourceLanguage string
	logger         arbor.ILogger
}

// NewRepairer creates a repairer
func NewRepairer(content interfaces.ContentStorage, sourceLanguage string, logger arbor.ILogger) *Repairer {
	if sourceLanguage == "" {
		sourceLanguage = "en"
	}
	return &Repairer{
		content:        content,
		sourceLanguage: sourceLanguage,
		logger:         logger,
	}
}

// RepairArticleLinks re-establishes hreflang group linkage between source and
// translated articles. A translated article whose slug appears in a source
// article's translations map but whose group differs is pulled into the
// source article's group.
func (r *Repairer) RepairArticleLinks(ctx context.Context, clusterSlug string, dryRun bool) (*RepairReport, error) {
	report := &RepairReport{Operation: "article_links", DryRun: dryRun}

	articles, err := r.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster articles: %w", err)
	}

	bySlugAndLang := make(map[string]*models.PublishedArticle)
	for _, a := range articles {
		bySlugAndLang[a.Language+"/"+a.Slug] = a
	}

	for _, source := range articles {
		if source.Language != r.sourceLanguage {
			continue
		}
		for lang, slug := range source.Translations {
			translated, ok := bySlugAndLang[lang+"/"+slug]
			if !ok {
				report.Found++
				report.Details = append(report.Details,
					fmt.Sprintf("%s: %s translation %q does not exist", source.Slug, lang, slug))
				continue
			}
			if translated.HreflangGroupID == source.HreflangGroupID {
				continue
			}

			report.Found++
			report.Details = append(report.Details,
				fmt.Sprintf("%s: relink %s/%s into group %s", source.Slug, lang, slug, source.HreflangGroupID))
			if dryRun {
				continue
			}

			translated.HreflangGroupID = source.HreflangGroupID
			if err := r.content.SaveArticle(ctx, translated); err != nil {
				return nil, fmt.Errorf("failed to relink article %s: %w", translated.ID, err)
			}
			report.Changed++
		}
	}

	r.logReport(report)
	return report, nil
}

// ReanchorQA re-associates translated Q&A rows with the correct
// target-language article when the source-article mapping drifted. The
// correct anchor is resolved through the source item's group: source Q&A ->
// source article -> target-language article in the same hreflang group.
func (r *Repairer) ReanchorQA(ctx context.Context, clusterSlug string, dryRun bool) (*RepairReport, error) {
	report := &RepairReport{Operation: "qa_anchors", DryRun: dryRun}

	articles, err := r.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster articles: %w", err)
	}
	allQA, err := r.content.GetClusterQA(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster Q&A: %w", err)
	}

	articleByID := make(map[string]*models.PublishedArticle)
	articleByGroupLang := make(map[string]*models.PublishedArticle)
	for _, a := range articles {
		articleByID[a.ID] = a
		articleByGroupLang[a.HreflangGroupID+"/"+a.Language] = a
	}

	sourceAnchor := make(map[string]string) // QA group -> source article ID
	for _, item := range allQA {
		if item.Language == r.sourceLanguage {
			sourceAnchor[item.HreflangGroupID] = item.SourceArticleID
		}
	}

	for _, item := range allQA {
		if item.Language == r.sourceLanguage {
			continue
		}

		sourceArticleID, ok := sourceAnchor[item.HreflangGroupID]
		if !ok {
			// Orphaned group; UnifyOrphans handles these.
			continue
		}
		sourceArticle, ok := articleByID[sourceArticleID]
		if !ok {
			continue
		}
		want := articleByGroupLang[sourceArticle.HreflangGroupID+"/"+item.Language]
		if want == nil || item.SourceArticleID == want.ID {
			continue
		}

		report.Found++
		report.Details = append(report.Details,
			fmt.Sprintf("qa %s (%s): reanchor from %s to %s", item.ID, item.Language, item.SourceArticleID, want.ID))
		if dryRun {
			continue
		}

		item.SourceArticleID = want.ID
		if err := r.content.SaveQA(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to reanchor Q&A %s: %w", item.ID, err)
		}
		report.Changed++
	}

	r.logReport(report)
	return report, nil
}

// UnifyOrphans merges orphaned translated Q&A rows - rows whose hreflang
// group is not shared with any source-language row - into the correct group.
// The match walks the orphan's anchor article back to its source-language
// sibling and picks that article's first source Q&A group still missing this
// language.
func (r *Repairer) UnifyOrphans(ctx context.Context, clusterSlug string, dryRun bool) (*RepairReport, error) {
	report := &RepairReport{Operation: "orphan_unification", DryRun: dryRun}

	articles, err := r.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster articles: %w", err)
	}
	allQA, err := r.content.GetClusterQA(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster Q&A: %w", err)
	}

	articleByID := make(map[string]*models.PublishedArticle)
	sourceArticleByGroup := make(map[string]*models.PublishedArticle)
	for _, a := range articles {
		articleByID[a.ID] = a
		if a.Language == r.sourceLanguage {
			sourceArticleByGroup[a.HreflangGroupID] = a
		}
	}

	sourceGroups := make(map[string]bool)
	groupHasLanguage := make(map[string]map[string]bool)
	sourceByArticle := make(map[string][]*models.QAItem)
	for _, item := range allQA {
		if groupHasLanguage[item.HreflangGroupID] == nil {
			groupHasLanguage[item.HreflangGroupID] = make(map[string]bool)
		}
		groupHasLanguage[item.HreflangGroupID][item.Language] = true
		if item.Language == r.sourceLanguage {
			sourceGroups[item.HreflangGroupID] = true
			sourceByArticle[item.SourceArticleID] = append(sourceByArticle[item.SourceArticleID], item)
		}
	}

	for _, orphan := range allQA {
		if orphan.Language == r.sourceLanguage || sourceGroups[orphan.HreflangGroupID] {
			continue
		}

		report.Found++

		target := r.matchOrphan(orphan, articleByID, sourceArticleByGroup, sourceByArticle, groupHasLanguage)
		if target == nil {
			report.Details = append(report.Details,
				fmt.Sprintf("qa %s (%s): orphaned, no candidate source group", orphan.ID, orphan.Language))
			continue
		}

		report.Details = append(report.Details,
			fmt.Sprintf("qa %s (%s): merge into group %s", orphan.ID, orphan.Language, target.HreflangGroupID))
		if dryRun {
			continue
		}

		orphan.HreflangGroupID = target.HreflangGroupID
		if err := r.content.SaveQA(ctx, orphan); err != nil {
			return nil, fmt.Errorf("failed to unify orphan %s: %w", orphan.ID, err)
		}
		groupHasLanguage[target.HreflangGroupID][orphan.Language] = true

		if target.Translations == nil {
			target.Translations = map[string]string{}
		}
		target.Translations[orphan.Language] = orphan.ID
		if err := r.content.SaveQA(ctx, target); err != nil {
			return nil, fmt.Errorf("failed to update source translations for %s: %w", target.ID, err)
		}
		report.Changed++
	}

	r.logReport(report)
	return report, nil
}

// matchOrphan finds the source Q&A item whose group the orphan belongs in
func (r *Repairer) matchOrphan(
	orphan *models.QAItem,
	articleByID map[string]*models.PublishedArticle,
	sourceArticleByGroup map[string]*models.PublishedArticle,
	sourceByArticle map[string][]*models.QAItem,
	groupHasLanguage map[string]map[string]bool,
) *models.QAItem {
	anchor := articleByID[orphan.SourceArticleID]
	if anchor == nil {
		return nil
	}

	sourceArticle := sourceArticleByGroup[anchor.HreflangGroupID]
	if sourceArticle == nil {
		return nil
	}

	for _, candidate := range sourceByArticle[sourceArticle.ID] {
		if !groupHasLanguage[candidate.HreflangGroupID][orphan.Language] {
			return candidate
		}
	}
	return nil
}

func (r *Repairer) logReport(report *RepairReport) {
	r.logger.Info().
		Str("operation", report.Operation).
		Bool("dry_run", report.DryRun).
		Int("found", report.Found).
		Int("changed", report.Changed).
		Msg("Repair operation finished")
}
