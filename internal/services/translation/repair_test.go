package translation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

func newTestRepairer(content *memContent) *Repairer {
	return NewRepairer(content, "en", common.GetLogger())
}

func TestRepairArticleLinks(t *testing.T) {
	content := newMemContent()
	content.articles["en-a1"] = models.PublishedArticle{
		ID: "en-a1", ClusterSlug: testCluster, Slug: "buying-guide",
		Language: "en", HreflangGroupID: "g1",
		Translations: map[string]string{"de": "kaufratgeber", "nl": "missing-slug"},
	}
	// Linked by slug but drifted out of the source group.
	content.articles["de-a1"] = models.PublishedArticle{
		ID: "de-a1", ClusterSlug: testCluster, Slug: "kaufratgeber",
		Language: "de", HreflangGroupID: "stale-group",
	}

	repairer := newTestRepairer(content)
	ctx := context.Background()

	dry, err := repairer.RepairArticleLinks(ctx, testCluster, true)
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Found, "one drifted group, one missing translation target")
	assert.Zero(t, dry.Changed)

	// Dry run changed nothing.
	unchanged, _ := content.article("de-a1")
	assert.Equal(t, "stale-group", unchanged.HreflangGroupID)

	applied, err := repairer.RepairArticleLinks(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Equal(t, 2, applied.Found)
	assert.Equal(t, 1, applied.Changed, "the missing translation is reported, not fabricated")

	relinked, _ := content.article("de-a1")
	assert.Equal(t, "g1", relinked.HreflangGroupID)

	// Idempotent: the drifted group stays fixed on a re-run.
	again, err := repairer.RepairArticleLinks(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Found, "only the missing translation target remains")
	assert.Zero(t, again.Changed)
}

func TestReanchorQA(t *testing.T) {
	content := newMemContent()
	content.articles["en-a1"] = models.PublishedArticle{
		ID: "en-a1", ClusterSlug: testCluster, Slug: "buying-guide",
		Language: "en", HreflangGroupID: "g1",
	}
	content.articles["de-a1"] = models.PublishedArticle{
		ID: "de-a1", ClusterSlug: testCluster, Slug: "kaufratgeber",
		Language: "de", HreflangGroupID: "g1",
	}
	content.qa["q-en-1"] = models.QAItem{
		ID: "q-en-1", ClusterSlug: testCluster, SourceArticleID: "en-a1",
		Language: "en", HreflangGroupID: "qg1",
	}
	// Translated row in the right group but anchored at the source article
	// instead of its German sibling.
	content.qa["q-de-1"] = models.QAItem{
		ID: "q-de-1", ClusterSlug: testCluster, SourceArticleID: "en-a1",
		Language: "de", HreflangGroupID: "qg1",
	}

	repairer := newTestRepairer(content)
	ctx := context.Background()

	dry, err := repairer.ReanchorQA(ctx, testCluster, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Found)
	assert.Zero(t, dry.Changed)

	applied, err := repairer.ReanchorQA(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Equal(t, 1, applied.Changed)

	fixed, _ := content.qaItem("q-de-1")
	assert.Equal(t, "de-a1", fixed.SourceArticleID)

	clean, err := repairer.ReanchorQA(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Zero(t, clean.Found, "reanchoring is idempotent")
}

func TestUnifyOrphans(t *testing.T) {
	content := newMemContent()
	content.articles["en-a1"] = models.PublishedArticle{
		ID: "en-a1", ClusterSlug: testCluster, Slug: "buying-guide",
		Language: "en", HreflangGroupID: "g1",
	}
	content.articles["en-a2"] = models.PublishedArticle{
		ID: "en-a2", ClusterSlug: testCluster, Slug: "tax-guide",
		Language: "en", HreflangGroupID: "g2",
	}
	content.articles["de-a1"] = models.PublishedArticle{
		ID: "de-a1", ClusterSlug: testCluster, Slug: "kaufratgeber",
		Language: "de", HreflangGroupID: "g1",
	}
	content.articles["de-a2"] = models.PublishedArticle{
		ID: "de-a2", ClusterSlug: testCluster, Slug: "steuerratgeber",
		Language: "de", HreflangGroupID: "g2",
	}
	content.qa["q-en-1"] = models.QAItem{
		ID: "q-en-1", ClusterSlug: testCluster, SourceArticleID: "en-a1",
		Language: "en", HreflangGroupID: "qg1",
	}
	content.qa["q-en-2"] = models.QAItem{
		ID: "q-en-2", ClusterSlug: testCluster, SourceArticleID: "en-a2",
		Language: "en", HreflangGroupID: "qg2",
	}
	// Two translated rows inserted under private groups no source row shares.
	content.qa["q-de-1"] = models.QAItem{
		ID: "q-de-1", ClusterSlug: testCluster, SourceArticleID: "de-a1",
		Language: "de", HreflangGroupID: "lost-group-1",
	}
	content.qa["q-de-2"] = models.QAItem{
		ID: "q-de-2", ClusterSlug: testCluster, SourceArticleID: "de-a2",
		Language: "de", HreflangGroupID: "lost-group-2",
	}

	repairer := newTestRepairer(content)
	ctx := context.Background()

	dry, err := repairer.UnifyOrphans(ctx, testCluster, true)
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Found)
	assert.Zero(t, dry.Changed)

	applied, err := repairer.UnifyOrphans(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Equal(t, 2, applied.Found)
	assert.Equal(t, 2, applied.Changed)

	merged1, _ := content.qaItem("q-de-1")
	assert.Equal(t, "qg1", merged1.HreflangGroupID)
	merged2, _ := content.qaItem("q-de-2")
	assert.Equal(t, "qg2", merged2.HreflangGroupID)

	source1, _ := content.qaItem("q-en-1")
	assert.Equal(t, "q-de-1", source1.Translations["de"])
	source2, _ := content.qaItem("q-en-2")
	assert.Equal(t, "q-de-2", source2.Translations["de"])

	clean, err := repairer.UnifyOrphans(ctx, testCluster, false)
	require.NoError(t, err)
	assert.Zero(t, clean.Found, "a unified cluster reports no orphans")
}

func TestUnifyOrphansNoCandidate(t *testing.T) {
	content := newMemContent()
	// Orphan whose anchor article does not exist at all.
	content.qa["q-de-lost"] = models.QAItem{
		ID: "q-de-lost", ClusterSlug: testCluster, SourceArticleID: "vanished",
		Language: "de", HreflangGroupID: "lost-group",
	}

	repairer := newTestRepairer(content)
	report, err := repairer.UnifyOrphans(context.Background(), testCluster, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Zero(t, report.Changed)
	require.Len(t, report.Details, 1)
	assert.Contains(t, report.Details[0], "no candidate source group")
}
