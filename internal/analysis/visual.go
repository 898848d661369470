package analysis

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"dev.veridict.agent/internal/models"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".avif": {},
}

// VisualValidator checks the plausibility of an item's image reference and
// how well the surrounding caption context matches the headline. It only
// inspects the URL structure; fetching and pixel-level forensics live
// behind an external detector boundary.
type VisualValidator struct{}

func NewVisualValidator() *VisualValidator { return &VisualValidator{} }

func (v *VisualValidator) ID() string { return UnitVisual }

func (v *VisualValidator) Analyze(_ context.Context, item models.NewsItem) (models.SignalReport, error) {
	if !item.HasImage() {
		return DegenerateReport(v.ID(), "item has no image"), nil
	}

	plausibility := imagePlausibility(item.ImageURL)
	match := captionMatch(item)

	confidence := models.Clamp01(0.6*plausibility + 0.4*match)

	return models.SignalReport{
		UnitID:     v.ID(),
		Confidence: confidence,
		SubScores: map[string]float64{
			models.SubScoreImagePlausibility: plausibility,
			models.SubScoreCaptionMatch:      match,
		},
		Rationale: fmt.Sprintf("image plausibility %.2f, caption match %.2f", plausibility, match),
	}, nil
}

// imagePlausibility scores the URL structure: scheme, a recognizable image
// extension and a host that is not a known meme or stock dump.
func imagePlausibility(raw string) float64 {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return 0.1
	}
	score := 0.3
	if u.Scheme == "https" {
		score += 0.3
	} else if u.Scheme == "http" {
		score += 0.15
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := imageExtensions[ext]; ok {
		score += 0.3
	}
	host := strings.ToLower(u.Host)
	if strings.Contains(host, "imgflip") || strings.Contains(host, "memegen") {
		score -= 0.4
	}
	return models.Clamp01(score)
}

// captionMatch compares image path tokens against headline tokens. Image
// file names often carry slug words from the story they belong to.
func captionMatch(item models.NewsItem) float64 {
	u, err := url.Parse(item.ImageURL)
	if err != nil {
		return 0.5
	}
	slug := strings.ToLower(strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path)))
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)

	slugTokens := tokenSet(slug)
	headTokens := tokenSet(strings.ToLower(item.Headline))
	if len(slugTokens) == 0 || len(headTokens) == 0 {
		return 0.5 // nothing to compare, stay neutral
	}
	overlap := 0
	for w := range slugTokens {
		if _, ok := headTokens[w]; ok {
			overlap++
		}
	}
	return models.Clamp01(0.4 + 0.6*float64(overlap)/float64(len(slugTokens)))
}
