package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// memJobs is an in-memory JobStorage. GetJob returns copies so the pipeline's
// re-reads behave like real row fetches.
type memJobs struct {
	mu     sync.Mutex
	jobs   map[string]models.GenerationJob
	claims map[string]string
}

func newMemJobs() *memJobs {
	return &memJobs{
		jobs:   make(map[string]models.GenerationJob),
		claims: make(map[string]string),
	}
}

func (m *memJobs) CreateJob(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) GetJob(_ context.Context, jobID string) (*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	copied := job
	return &copied, nil
}

func (m *memJobs) UpdateJob(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) ListJobs(_ context.Context, _ *interfaces.JobListOptions) ([]*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.GenerationJob, 0, len(m.jobs))
	for id := range m.jobs {
		copied := m.jobs[id]
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memJobs) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memJobs) UpdateHeartbeat(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	job.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = job
	return nil
}

func (m *memJobs) GetStalledJobs(_ context.Context, threshold time.Duration) ([]*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []*models.GenerationJob
	for id := range m.jobs {
		job := m.jobs[id]
		if job.IsStalled(now, threshold) {
			copied := job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memJobs) ClaimCluster(_ context.Context, claim *models.ClusterClaim) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.claims[claim.ClusterSlug]; held {
		return false, nil
	}
	m.claims[claim.ClusterSlug] = claim.JobID
	return true, nil
}

func (m *memJobs) ReleaseCluster(_ context.Context, clusterSlug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, clusterSlug)
	return nil
}

func (m *memJobs) claimHeld(clusterSlug string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.claims[clusterSlug]
	return held
}

// scriptedLLM routes chat calls by system prompt to canned pipeline responses.
type scriptedLLM struct {
	mu        sync.Mutex
	healthErr error
	// headlines whose citation discovery only ever yields blocked domains
	uncitable map[string]bool
	calls     map[string]int
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		uncitable: make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (s *scriptedLLM) HealthCheck(context.Context) error { return s.healthErr }
func (s *scriptedLLM) Close() error                      { return nil }

func (s *scriptedLLM) count(key string) {
	s.mu.Lock()
	s.calls[key]++
	s.mu.Unlock()
}

func (s *scriptedLLM) Chat(_ context.Context, messages []interfaces.Message) (string, error) {
	system := messages[0].Content
	user := messages[len(messages)-1].Content

	switch {
	case strings.Contains(system, "content strategist"):
		s.count("structure")
		return scriptedStructure, nil
	case strings.Contains(system, "content writer"):
		s.count("body")
		return qualityBody("costa blanca property", 5, 25), nil
	case strings.Contains(system, "SEO specialist"):
		s.count("metadata")
		return `{"meta_title":"Costa Blanca Property Guide","meta_description":"Everything buyers need to know about Costa Blanca property.","speakable_answer":"Buying on the Costa Blanca takes six to twelve weeks once a reservation is signed.","category":"Buying Process","author":"Maria Santos"}`, nil
	case strings.Contains(system, "FAQ writer"):
		s.count("faq")
		return `{"faqs":[{"question":"How long does buying take?","answer":"Usually six to twelve weeks from reservation to completion."},{"question":"Do I need a NIE?","answer":"Yes, every foreign buyer needs a NIE number before completion."}]}`, nil
	case strings.Contains(system, "real-estate market content"):
		s.count("citations")
		for headline := range s.uncitable {
			if strings.Contains(user, headline) {
				return `{"citations":[{"url":"https://randomblog.example/post","source_name":"Blog"}]}`, nil
			}
		}
		return `{"citations":[{"url":"https://ine.es/prices","source_name":"INE","context_in_article":"prices rose 4% last year","insert_after_heading":"Section 1"},{"url":"https://kyero.com/report","source_name":"Kyero","context_in_article":"listings grew steadily","insert_after_heading":"Section 2"}]}`, nil
	case strings.Contains(system, "internal-linking specialist"):
		s.count("links")
		return `{"links":[]}`, nil
	case strings.Contains(system, "research assistant"):
		s.count("repair")
		return `{"citations":[]}`, nil
	}
	return "", errors.New("unexpected chat call: " + system)
}

// scriptedStructure is a valid six-plan structure in the fixed funnel split
var scriptedStructure = `{"articles":[
	{"funnel_stage":"TOFU","headline":"Why the Costa Blanca Draws Foreign Buyers","target_keyword":"costa blanca property","search_intent":"informational","content_angle":"overview"},
	{"funnel_stage":"TOFU","headline":"Cost of Living on the Costa Blanca","target_keyword":"costa blanca cost of living","search_intent":"informational","content_angle":"budget"},
	{"funnel_stage":"TOFU","headline":"Best Towns on the Costa Blanca for Expats","target_keyword":"costa blanca towns","search_intent":"informational","content_angle":"locations"},
	{"funnel_stage":"MOFU","headline":"Villa or Apartment on the Costa Blanca","target_keyword":"costa blanca villa apartment","search_intent":"commercial","content_angle":"comparison"},
	{"funnel_stage":"MOFU","headline":"Financing a Costa Blanca Property Purchase","target_keyword":"costa blanca mortgage","search_intent":"commercial","content_angle":"finance"},
	{"funnel_stage":"BOFU","headline":"The Costa Blanca Buying Process Step by Step","target_keyword":"buy costa blanca property","search_intent":"transactional","content_angle":"process"}
]}`

// failingImages always errors so the store falls back to its placeholder
type failingImages struct{}

func (failingImages) GenerateImage(context.Context, string, string) (string, error) {
	return "", errors.New("image backend unavailable")
}
func (failingImages) Close() error { return nil }
