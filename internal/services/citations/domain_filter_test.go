package citations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain https", "https://ine.es/stats", "ine.es"},
		{"www prefix stripped", "https://www.idealista.com/news/12", "idealista.com"},
		{"uppercase host", "HTTPS://WWW.Kyero.COM/path", "kyero.com"},
		{"port ignored", "https://bde.es:8443/report", "bde.es"},
		{"query ignored", "https://numbeo.com?city=valencia", "numbeo.com"},
		{"fragment ignored", "https://oecd.org#section", "oecd.org"},
		{"no scheme", "statista.com/statistics/1", "statista.com"},
		{"subdomain kept", "https://ec.europa.eu/eurostat", "ec.europa.eu"},
		{"whitespace trimmed", "  https://sepe.es  ", "sepe.es"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.url))
		})
	}
}

func TestFilterPartitions(t *testing.T) {
	filter := NewDomainFilter(nil, nil)

	citations := []models.Citation{
		{SourceName: "INE", URL: "https://www.ine.es/jaxiT3/Tabla.htm"},
		{SourceName: "Random Blog", URL: "https://someblog.example.com/post"},
		{SourceName: "Idealista", URL: "https://idealista.com/news/prices"},
		{SourceName: "Forum", URL: "https://expatforum.net/thread/9"},
	}

	result := filter.Filter(citations)
	require.Len(t, result.Approved, 2)
	require.Len(t, result.Blocked, 2)
	assert.Equal(t, "INE", result.Approved[0].SourceName)
	assert.Equal(t, "Random Blog", result.Blocked[0].SourceName)
}

func TestFilterIsIdempotent(t *testing.T) {
	filter := NewDomainFilter([]string{"custom-registry.es"}, nil)

	citations := []models.Citation{
		{URL: "https://ine.es/a"},
		{URL: "https://custom-registry.es/b"},
		{URL: "https://blocked.example/c"},
		{URL: "https://kyero.com/d"},
	}

	once := filter.Filter(citations)
	twice := filter.Filter(once.Approved)

	assert.Equal(t, once.Approved, twice.Approved)
	assert.Empty(t, twice.Blocked)
}

func TestNewDomainFilterExtras(t *testing.T) {
	filter := NewDomainFilter([]string{"www.Extra-Domain.COM", ""}, nil)
	assert.True(t, filter.IsApproved("https://extra-domain.com/page"))
	assert.False(t, filter.IsApproved("https://not-listed.com"))
}

func TestStripBlockedLinksRemovesWholePhrase(t *testing.T) {
	filter := NewDomainFilter(nil, nil)

	blockedURL := "https://someblog.example.com/post"
	approvedURL := "https://ine.es/stats"
	html := `<h2>Prices</h2>` +
		`<p>According to the <a href="` + blockedURL + `" target="_blank" rel="noopener noreferrer">Some Blog</a>, prices rose 4%.</p>` +
		`<p>According to the <a href="` + approvedURL + `" target="_blank" rel="noopener noreferrer">INE</a>, inflation held steady.</p>`

	stripped := filter.StripBlockedLinks(html, []models.Citation{{URL: blockedURL}})

	assert.NotContains(t, stripped, blockedURL)
	assert.Contains(t, stripped, approvedURL, "approved anchors survive intact")
	assert.Contains(t, stripped, "According to the <a href=\""+approvedURL)
	// The lead-in phrase of the blocked anchor must go with it.
	assert.Equal(t, 1, strings.Count(stripped, "According to the"))
}

func TestStripBlockedLinksUnwrapsBareAnchor(t *testing.T) {
	filter := NewDomainFilter(nil, nil)

	blockedURL := "https://someblog.example.com/post"
	html := `<p>See <a href="` + blockedURL + `">the full analysis</a> for details.</p>`

	stripped := filter.StripBlockedLinks(html, []models.Citation{{URL: blockedURL}})

	assert.NotContains(t, stripped, blockedURL)
	assert.Contains(t, stripped, "See the full analysis for details.")
}

func TestDedupeByURL(t *testing.T) {
	citations := []models.Citation{
		{SourceName: "First", URL: "https://ine.es/a"},
		{SourceName: "Duplicate", URL: "https://INE.es/a "},
		{SourceName: "Other", URL: "https://kyero.com/b"},
		{SourceName: "Empty", URL: ""},
	}

	out := DedupeByURL(citations)
	require.Len(t, out, 2)
	assert.Equal(t, "First", out[0].SourceName)
	assert.Equal(t, "Other", out[1].SourceName)
}
