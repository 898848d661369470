// Package debate runs a single-pass structured argument over the signal
// reports for an item: a claim is stated, challenged, rebutted and then
// resolved into a DebateRecord the judge consumes.
package debate

import (
	"fmt"
	"strings"

	"dev.veridict.agent/internal/models"
)

// Phase is the debate protocol state.
type Phase string

const (
	PhaseClaimStated Phase = "CLAIM_STATED"
	PhaseChallenged  Phase = "CHALLENGED"
	PhaseRebutted    Phase = "REBUTTED"
	PhaseResolved    Phase = "RESOLVED"
)

// transitions encodes the legal single-pass order.
var transitions = map[Phase]Phase{
	PhaseClaimStated: PhaseChallenged,
	PhaseChallenged:  PhaseRebutted,
	PhaseRebutted:    PhaseResolved,
}

// Session drives one debate through its phases. Sessions are not reusable.
type Session struct {
	phase  Phase
	record models.DebateRecord
}

// NewSession opens a debate in the CLAIM_STATED phase with the given claim.
func NewSession(claim string) *Session {
	return &Session{
		phase:  PhaseClaimStated,
		record: models.DebateRecord{Claim: claim},
	}
}

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) advance(from Phase) error {
	if s.phase != from {
		return fmt.Errorf("debate: cannot act in phase %s while in %s", from, s.phase)
	}
	s.phase = transitions[from]
	return nil
}

// Advocate records the supporting argument and moves to CHALLENGED.
func (s *Session) Advocate(arg models.Argument) error {
	if err := s.advance(PhaseClaimStated); err != nil {
		return err
	}
	s.record.Advocacy = []models.Argument{arg}
	return nil
}

// Challenge records the opposing arguments and moves to REBUTTED.
func (s *Session) Challenge(args []models.Argument) error {
	if err := s.advance(PhaseChallenged); err != nil {
		return err
	}
	s.record.Challenges = args
	return nil
}

// Rebut records rebuttals and resolves the debate. Rebuttals pair with
// challenges by index; missing rebuttals leave challenges unanswered and
// surplus rebuttals are dropped.
func (s *Session) Rebut(args []models.Argument) error {
	if err := s.advance(PhaseRebutted); err != nil {
		return err
	}
	if len(args) > len(s.record.Challenges) {
		args = args[:len(s.record.Challenges)]
	}
	s.record.Rebuttals = args
	return nil
}

// Record returns the resolved debate. It errors if the protocol has not
// completed its pass.
func (s *Session) Record() (models.DebateRecord, error) {
	if s.phase != PhaseResolved {
		return models.DebateRecord{}, fmt.Errorf("debate: record requested in phase %s", s.phase)
	}
	return s.record, nil
}

// Run executes the whole protocol over the reports: the advocate argues
// the strongest supporting evidence, the challenger raises one argument
// per weakness, and the rebutter answers what the evidence can answer.
func Run(item models.NewsItem, reports []models.SignalReport) (models.DebateRecord, error) {
	claim := fmt.Sprintf("the item %q reports genuine news", truncate(item.Headline, 80))
	s := NewSession(claim)

	if err := s.Advocate(advocate(reports)); err != nil {
		return models.DebateRecord{}, err
	}
	challenges := challenge(reports)
	if err := s.Challenge(challenges); err != nil {
		return models.DebateRecord{}, err
	}
	if err := s.Rebut(rebut(reports, challenges)); err != nil {
		return models.DebateRecord{}, err
	}
	return s.Record()
}

// advocate derives the initial support strength from the mean confidence
// of the usable reports. With no usable reports it concedes a
// zero-strength placeholder.
func advocate(reports []models.SignalReport) models.Argument {
	sum := 0.0
	n := 0
	strongest := ""
	best := -1.0
	for _, r := range reports {
		if r.Degenerate() {
			continue
		}
		sum += r.Confidence
		n++
		if r.Confidence > best {
			best = r.Confidence
			strongest = r.UnitID
		}
	}
	if n == 0 {
		return models.Argument{Strength: 0, Justification: "no evidence available to support the claim"}
	}
	mean := sum / float64(n)
	return models.Argument{
		Strength:      models.Clamp01(mean),
		Justification: fmt.Sprintf("mean signal confidence %.2f across %d unit(s), led by %s", mean, n, strongest),
	}
}

// challenge raises one argument per weak signal. Low unit confidence and
// high manipulation sub-scores each produce a challenge.
func challenge(reports []models.SignalReport) []models.Argument {
	var args []models.Argument
	for _, r := range reports {
		if r.Degenerate() {
			args = append(args, models.Argument{
				Strength:      0.3,
				Justification: fmt.Sprintf("%s unit produced no usable signal", r.UnitID),
			})
			continue
		}
		if r.Confidence < 0.4 {
			args = append(args, models.Argument{
				Strength:      models.Clamp01(1 - r.Confidence - 0.1),
				Justification: fmt.Sprintf("%s unit distrusts the item (confidence %.2f)", r.UnitID, r.Confidence),
			})
		}
		if manip := r.SubScore(models.SubScoreEmotionalManip, 0); manip > 0.6 {
			args = append(args, models.Argument{
				Strength:      models.Clamp01(manip - 0.2),
				Justification: fmt.Sprintf("strong emotional manipulation signal (%.2f)", manip),
			})
		}
		if div := r.SubScore(models.SubScoreHeadlineDivergence, 0); div > 0.7 {
			args = append(args, models.Argument{
				Strength:      models.Clamp01(div - 0.3),
				Justification: fmt.Sprintf("headline diverges from body (%.2f)", div),
			})
		}
	}
	if len(args) == 0 {
		// The challenge list is never empty for a claim that entered
		// debate; silence is recorded as a zero-strength placeholder.
		args = append(args, models.Argument{Strength: 0, Justification: "no contradicting signals found"})
	}
	return args
}

// rebut answers each challenge with whatever counter-evidence the reports
// hold. A challenge with no counter-evidence gets a zero-strength rebuttal
// so the pairing stays aligned by index.
func rebut(reports []models.SignalReport, challenges []models.Argument) []models.Argument {
	evidence := 0.0
	credibility := 0.0
	for _, r := range reports {
		if r.Degenerate() {
			continue
		}
		if e := r.SubScore(models.SubScoreEvidencePresence, 0); e > evidence {
			evidence = e
		}
		if c := r.SubScore(models.SubScoreSourceCredibility, 0); c > credibility {
			credibility = c
		}
	}

	rebuttals := make([]models.Argument, len(challenges))
	for i, ch := range challenges {
		counter := 0.0
		just := "no counter-evidence available"
		switch {
		case strings.Contains(ch.Justification, "emotional") && evidence > 0.5:
			counter = evidence * 0.8
			just = fmt.Sprintf("emotional tone offset by cited evidence (%.2f)", evidence)
		case strings.Contains(ch.Justification, "distrusts") && credibility > 0.7:
			counter = credibility * 0.7
			just = fmt.Sprintf("source credibility %.2f outweighs the unit's doubt", credibility)
		case evidence > 0.6:
			counter = evidence * 0.5
			just = fmt.Sprintf("general evidence presence (%.2f) partially answers the challenge", evidence)
		}
		rebuttals[i] = models.Argument{Strength: models.Clamp01(counter), Justification: just}
	}
	return rebuttals
}

// truncate shortens to n runes, not bytes, so multibyte headlines never
// leave a split rune in the claim.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
