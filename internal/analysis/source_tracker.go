package analysis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"dev.veridict.agent/internal/models"
)

// Domain credibility priors for the built-in tracker. Unknown domains fall
// back to a neutral 0.5. Entries are overridable via SetCredibility, which
// lets the hosting process seed a curated table.
var defaultCredibility = map[string]float64{
	"bbc.com":           0.92,
	"bbc.co.uk":         0.92,
	"reuters.com":       0.95,
	"apnews.com":        0.94,
	"nytimes.com":       0.88,
	"theguardian.com":   0.87,
	"nature.com":        0.95,
	"nasa.gov":          0.96,
	"who.int":           0.93,
	"infowars.com":      0.10,
	"beforeitsnews.com": 0.12,
	"worldtruth.tv":     0.15,
	"theonion.com":      0.20, // credible satire, not credible news
	"clickhole.com":     0.20,
}

// SourceTracker scores the credibility and authority of an item's source
// domain. It stands in for the graph-backed source tracking collaborator.
type SourceTracker struct {
	mu          sync.RWMutex
	credibility map[string]float64
}

// NewSourceTracker creates a tracker seeded with the default domain priors.
func NewSourceTracker() *SourceTracker {
	cred := make(map[string]float64, len(defaultCredibility))
	for k, v := range defaultCredibility {
		cred[k] = v
	}
	return &SourceTracker{credibility: cred}
}

func (s *SourceTracker) ID() string { return UnitSourceTracker }

// SetCredibility overrides the prior for a domain.
func (s *SourceTracker) SetCredibility(domain string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credibility[strings.ToLower(domain)] = models.Clamp01(score)
}

// Analyze scores the item's source. Items without a link get a neutral
// low-authority report rather than an error: absence of a source is a weak
// negative signal, not a failure.
func (s *SourceTracker) Analyze(_ context.Context, item models.NewsItem) (models.SignalReport, error) {
	domain := extractDomain(item.Link)
	if domain == "" {
		domain = extractDomain(item.ID)
	}

	cred := 0.5
	authority := 0.3
	if domain != "" {
		cred = s.lookupCredibility(domain)
		authority = s.authorityScore(domain)
	}

	confidence := (cred + authority) / 2

	rationale := "no source link provided"
	if domain != "" {
		rationale = fmt.Sprintf("source %s: credibility %.2f, authority %.2f", domain, cred, authority)
	}

	return models.SignalReport{
		UnitID:     s.ID(),
		Confidence: models.Clamp01(confidence),
		SubScores: map[string]float64{
			models.SubScoreSourceCredibility: cred,
			models.SubScoreAuthority:         authority,
		},
		Rationale: rationale,
	}, nil
}

func (s *SourceTracker) lookupCredibility(domain string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if score, ok := s.credibility[domain]; ok {
		return score
	}
	// Try the registrable parent for subdomains like www.bbc.com.
	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts)-1; i++ {
		if score, ok := s.credibility[strings.Join(parts[i:], ".")]; ok {
			return score
		}
	}
	return 0.5
}

// authorityScore is a structural heuristic: institutional TLDs and https
// links rank higher than bare or exotic hosts.
func (s *SourceTracker) authorityScore(domain string) float64 {
	score := 0.5
	switch {
	case strings.HasSuffix(domain, ".gov"), strings.HasSuffix(domain, ".edu"):
		score = 0.9
	case strings.HasSuffix(domain, ".org"):
		score = 0.65
	case strings.Count(domain, ".") >= 3:
		score = 0.35 // deeply nested host, often a throwaway
	}
	return score
}

func extractDomain(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
