package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"dev.veridict.agent/internal/models"
)

// Outcome is the preprocessing gate decision for an item.
type Outcome string

const (
	OutcomeClean     Outcome = "clean"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSpam      Outcome = "spam"
)

// Promotional vocabulary used by the spam density check.
var promoWords = []string{
	"buy now", "click here", "limited offer", "act now", "free money",
	"miracle cure", "you won't believe", "subscribe", "giveaway",
	"guaranteed", "earn cash", "work from home",
}

// Preprocessor normalizes item text and gates duplicates and spam before
// the signal units run. Seen-item tracking is a bounded in-memory hash set.
type Preprocessor struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSeen int

	spamThreshold float64
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		seen:          make(map[string]struct{}),
		maxSeen:       10000,
		spamThreshold: 0.02,
	}
}

func (p *Preprocessor) ID() string { return UnitPreprocessor }

// Process cleans the item text, then checks the duplicate set and spam
// density. The cleaned item is returned alongside the gate outcome so
// downstream units see normalized text.
func (p *Preprocessor) Process(_ context.Context, item models.NewsItem) (models.NewsItem, Outcome) {
	item.Headline = cleanText(item.Headline)
	item.Text = cleanText(item.Text)

	fp := Fingerprint(item)
	if p.remember(fp) {
		return item, OutcomeDuplicate
	}
	if p.spamDensity(item) >= p.spamThreshold {
		return item, OutcomeSpam
	}
	return item, OutcomeClean
}

// Fingerprint is a content hash over the normalized headline and body,
// shared with the result cache so cache keys survive whitespace churn.
func Fingerprint(item models.NewsItem) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(item.Headline)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(item.Text)))
	return hex.EncodeToString(h.Sum(nil))
}

// remember records the fingerprint, reporting whether it was already seen.
// The set is capped; the oldest entries are evicted first.
func (p *Preprocessor) remember(fp string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[fp]; ok {
		return true
	}
	p.seen[fp] = struct{}{}
	p.order = append(p.order, fp)
	for len(p.order) > p.maxSeen {
		delete(p.seen, p.order[0])
		p.order = p.order[1:]
	}
	return false
}

// spamDensity is the fraction of promotional phrases present in the item
// relative to its word count.
func (p *Preprocessor) spamDensity(item models.NewsItem) float64 {
	body := strings.ToLower(item.Headline + " " + item.Text)
	words := len(strings.Fields(body))
	if words == 0 {
		return 0
	}
	hits := 0
	for _, phrase := range promoWords {
		hits += strings.Count(body, phrase)
	}
	return float64(hits) / float64(words)
}

// cleanText collapses whitespace and strips control characters.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}
