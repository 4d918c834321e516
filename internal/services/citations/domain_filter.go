// -----------------------------------------------------------------------
// Domain Filter - citation allow-list enforcement and anchor stripping
// -----------------------------------------------------------------------

package citations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// DefaultApprovedDomains is the baseline citation allow-list; config can
// extend it. Official statistics bureaus, land registries, and established
// property-market publishers.
var DefaultApprovedDomains = []string{
	"ine.es",
	"registradores.org",
	"sepe.es",
	"exteriores.gob.es",
	"idealista.com",
	"kyero.com",
	"spanishpropertyinsight.com",
	"bankofspain.es",
	"bde.es",
	"notaries.es",
	"europa.eu",
	"ec.europa.eu",
	"oecd.org",
	"numbeo.com",
	"statista.com",
}

// FilterResult partitions citations into approved and blocked
type FilterResult struct {
	Approved []models.Citation
	Blocked  []models.Citation
}

// DomainFilter enforces the citation domain allow-list. It holds no mutable
// state beyond the configured set; filtering is pure and idempotent.
type DomainFilter struct {
	approved map[string]bool
	logger   arbor.ILogger
}

// NewDomainFilter creates a filter over the union of the default allow-list
// and any configured extras
func NewDomainFilter(extraDomains []string, logger arbor.ILogger) *DomainFilter {
	approved := make(map[string]bool, len(DefaultApprovedDomains)+len(extraDomains))
	for _, d := range DefaultApprovedDomains {
		approved[strings.ToLower(d)] = true
	}
	for _, d := range extraDomains {
		if d != "" {
			approved[strings.ToLower(strings.TrimPrefix(d, "www."))] = true
		}
	}
	return &DomainFilter{approved: approved, logger: logger}
}

// ExtractDomain returns the host of a URL, lowercased, with the scheme,
// "www." prefix, path, port, and query ignored.
func ExtractDomain(rawURL string) string {
	s := strings.TrimSpace(strings.ToLower(rawURL))
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	for _, sep := range []string{"/", "?", "#", ":"} {
		if idx := strings.Index(s, sep); idx >= 0 {
			s = s[:idx]
		}
	}
	return s
}

// IsApproved reports whether the citation URL's domain is on the allow-list
func (f *DomainFilter) IsApproved(rawURL string) bool {
	return f.approved[ExtractDomain(rawURL)]
}

// Filter partitions citations by the allow-list. Matching is host-only and
// case-insensitive. The blocked count is logged for observability; the filter
// itself persists nothing.
func (f *DomainFilter) Filter(citations []models.Citation) FilterResult {
	result := FilterResult{
		Approved: make([]models.Citation, 0, len(citations)),
	}
	for _, c := range citations {
		if f.IsApproved(c.URL) {
			result.Approved = append(result.Approved, c)
		} else {
			result.Blocked = append(result.Blocked, c)
		}
	}

	if len(result.Blocked) > 0 && f.logger != nil {
		domains := make([]string, 0, len(result.Blocked))
		for _, c := range result.Blocked {
			domains = append(domains, ExtractDomain(c.URL))
		}
		f.logger.Info().
			Int("blocked_count", len(result.Blocked)).
			Strs("blocked_domains", domains).
			Msg("Blocked citations outside the approved domain list")
	}

	return result
}

// StripBlockedLinks removes every blocked citation's inline anchor from the
// HTML. The generated citation idiom is
//
//	According to the <a href="URL" ...>text</a>,
//
// and the whole phrase is removed as a unit (keyed on the exact href) so the
// surrounding prose reads naturally instead of leaving a dangling
// "According to the".
func (f *DomainFilter) StripBlockedLinks(html string, blocked []models.Citation) string {
	for _, c := range blocked {
		href := regexp.QuoteMeta(c.URL)

		// Full idiom including lead-in phrase and trailing comma/space
		phrase := regexp.MustCompile(
			`(?i)According to (?:the )?<a\s+href="` + href + `"[^>]*>.*?</a>,?\s*`)
		html = phrase.ReplaceAllString(html, "")

		// Any remaining bare anchors for the same href: unwrap to anchor text
		bare := regexp.MustCompile(`<a\s+href="` + href + `"[^>]*>(.*?)</a>`)
		html = bare.ReplaceAllString(html, "$1")
	}
	return html
}

// DedupeByURL merges citations, keeping the first occurrence per URL
func DedupeByURL(citations []models.Citation) []models.Citation {
	seen := make(map[string]bool, len(citations))
	out := make([]models.Citation, 0, len(citations))
	for _, c := range citations {
		key := strings.ToLower(strings.TrimSpace(c.URL))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// String summarizes the configured allow-list size (used in startup logs)
func (f *DomainFilter) String() string {
	return fmt.Sprintf("DomainFilter(%d approved domains)", len(f.approved))
}
