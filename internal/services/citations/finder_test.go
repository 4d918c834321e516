package citations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// scriptedFinder returns one canned batch per attempt and records requests
type scriptedFinder struct {
	batches  [][]models.Citation
	err      error
	requests []interfaces.CitationRequest
}

func (f *scriptedFinder) FindCitations(_ context.Context, req *interfaces.CitationRequest) ([]models.Citation, error) {
	f.requests = append(f.requests, *req)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.batches) {
		return nil, nil
	}
	return f.batches[idx], nil
}

func testAcquirer(finder interfaces.CitationFinder) *Acquirer {
	return &Acquirer{
		finder:       finder,
		filter:       NewDomainFilter(nil, nil),
		MaxAttempts:  3,
		MinCitations: 2,
		BaseDelay:    time.Millisecond,
	}
}

func TestAcquireSucceedsFirstAttempt(t *testing.T) {
	finder := &scriptedFinder{batches: [][]models.Citation{{
		{SourceName: "INE", URL: "https://ine.es/a"},
		{SourceName: "Kyero", URL: "https://kyero.com/b"},
	}}}

	got, err := testAcquirer(finder).Acquire(context.Background(), "body", "Headline", "en")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, finder.requests, 1)
	assert.False(t, finder.requests[0].RequireApprovedDomains)
	assert.Equal(t, 1, finder.requests[0].AttemptNumber)
}

func TestAcquireAccumulatesAcrossAttempts(t *testing.T) {
	finder := &scriptedFinder{batches: [][]models.Citation{
		{{SourceName: "INE", URL: "https://ine.es/a"}},
		{
			{SourceName: "INE duplicate", URL: "https://ine.es/a"},
			{SourceName: "Kyero", URL: "https://kyero.com/b"},
		},
	}}

	got, err := testAcquirer(finder).Acquire(context.Background(), "body", "Headline", "en")
	require.NoError(t, err)
	require.Len(t, got, 2, "approved citations accumulate and dedupe across attempts")
	assert.Equal(t, "INE", got[0].SourceName, "first occurrence wins on duplicate URLs")
	assert.Len(t, finder.requests, 2)
}

func TestAcquireFinalAttemptIsStrict(t *testing.T) {
	// Nothing approved ever comes back, so all three attempts run.
	finder := &scriptedFinder{batches: [][]models.Citation{
		{{URL: "https://blocked.example/1"}},
		{{URL: "https://blocked.example/2"}},
		{{URL: "https://blocked.example/3"}},
	}}

	got, err := testAcquirer(finder).Acquire(context.Background(), "body", "Headline", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 0 of 2 required citations")
	assert.Empty(t, got)

	require.Len(t, finder.requests, 3)
	assert.False(t, finder.requests[0].RequireApprovedDomains)
	assert.False(t, finder.requests[1].RequireApprovedDomains)
	assert.True(t, finder.requests[2].RequireApprovedDomains, "last attempt pins the allow-list")
}

func TestAcquireReturnsPartialOnShortfall(t *testing.T) {
	finder := &scriptedFinder{batches: [][]models.Citation{
		{{SourceName: "INE", URL: "https://ine.es/a"}},
		nil,
		nil,
	}}

	got, err := testAcquirer(finder).Acquire(context.Background(), "body", "Headline", "en")
	require.Error(t, err)
	assert.Len(t, got, 1, "the collected subset comes back with the shortfall error")
}

// cannedLLM replies with a fixed string for every chat call
type cannedLLM struct {
	response string
	err      error
}

func (c *cannedLLM) Chat(context.Context, []interfaces.Message) (string, error) {
	return c.response, c.err
}
func (c *cannedLLM) HealthCheck(context.Context) error { return nil }
func (c *cannedLLM) Close() error                      { return nil }

func TestFindCitationsParsesAndSkipsEmptyURLs(t *testing.T) {
	svc := &cannedLLM{response: `{"citations":[
		{"url":"https://ine.es/a","source_name":"INE","relevance":0.9,"insert_after_heading":"Prices"},
		{"url":"","source_name":"No URL"},
		{"url":"https://randomblog.example/x","source_name":"Blog"}
	]}`}
	finder := NewFinder(svc, NewDomainFilter(nil, nil), nil)

	got, err := finder.FindCitations(context.Background(), &interfaces.CitationRequest{Headline: "H", Language: "en"})
	require.NoError(t, err)
	require.Len(t, got, 2, "empty URLs are dropped, domain filtering is the acquirer's job on normal attempts")
	assert.Equal(t, "INE", got[0].SourceName)
	assert.Equal(t, "Prices", got[0].InsertAfterHeading)
}

func TestFindCitationsStrictModeFilters(t *testing.T) {
	svc := &cannedLLM{response: `{"citations":[
		{"url":"https://ine.es/a","source_name":"INE"},
		{"url":"https://randomblog.example/x","source_name":"Blog"}
	]}`}
	finder := NewFinder(svc, NewDomainFilter(nil, nil), nil)

	got, err := finder.FindCitations(context.Background(), &interfaces.CitationRequest{
		Headline:               "H",
		Language:               "en",
		RequireApprovedDomains: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INE", got[0].SourceName)
}

func TestFindCitationsPropagatesChatError(t *testing.T) {
	svc := &cannedLLM{err: errors.New("rate limited")}
	finder := NewFinder(svc, NewDomainFilter(nil, nil), nil)

	_, err := finder.FindCitations(context.Background(), &interfaces.CitationRequest{Headline: "H"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citation discovery call failed")
}
