// Package dialogue derives, purely from a transcript, which topic dimensions a
// conversation has covered and whether it is ready to conclude.
package dialogue

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// Quality grades the latest user answer on a dimension.
type Quality string

const (
	QualityNone Quality = "none"
	QualityPoor Quality = "poor"
	QualityFair Quality = "fair"
	QualityGood Quality = "good"
)

// Dimension is the per-request coverage state of one rule.
type Dimension struct {
	ID      DimensionID `json:"id"`
	Label   string      `json:"label"`
	Covered bool        `json:"covered"`
	Quality Quality     `json:"quality"`
}

// Analysis is built once per request and discarded afterwards.
type Analysis struct {
	Dimensions          []Dimension   `json:"dimensions"`
	ReadyForFinalAnswer bool          `json:"ready_for_final_answer"`
	NeedsClarification  bool          `json:"needs_clarification"`
	MissingDimensions   []DimensionID `json:"missing_dimensions"`
	UserMessages        int           `json:"user_messages"`
	TotalMessages       int           `json:"total_messages"`
}

// CoveredCount returns how many dimensions are covered.
func (a *Analysis) CoveredCount() int {
	n := 0
	for _, d := range a.Dimensions {
		if d.Covered {
			n++
		}
	}
	return n
}

// Next returns the highest-priority uncovered dimension.
func (a *Analysis) Next() (DimensionID, bool) {
	if len(a.MissingDimensions) == 0 {
		return "", false
	}
	return a.MissingDimensions[0], true
}

// ClarifyDimension returns the first covered dimension whose latest answer
// was poor. Clarification takes priority over opening a new dimension.
func (a *Analysis) ClarifyDimension() (Dimension, bool) {
	for _, d := range a.Dimensions {
		if d.Covered && d.Quality == QualityPoor {
			return d, true
		}
	}
	return Dimension{}, false
}

// Options are the tuning constants of the tracker.
type Options struct {
	// MinUserMessages is the number of user turns required before readiness.
	MinUserMessages int
	// GoodQualityThreshold is how many dimensions must reach good quality.
	GoodQualityThreshold int
	// MinAnswerLength is the trimmed length below which an answer is poor.
	MinAnswerLength int
	// GoodAnswerLength is the trimmed length an answer needs to be good.
	GoodAnswerLength int
	// IncludeAssistant makes assistant turns count toward coverage.
	IncludeAssistant bool
}

// DefaultOptions mirror the config defaults.
func DefaultOptions() Options {
	return Options{
		MinUserMessages:      3,
		GoodQualityThreshold: 3,
		MinAnswerLength:      15,
		GoodAnswerLength:     40,
	}
}

// Tracker is a deterministic, stateless classifier over transcripts.
type Tracker struct {
	rules  []compiledRule
	hedges []string
	opts   Options
}

type compiledRule struct {
	Rule
	coverage []string
	context  []string
}

// NewTracker compiles rules and hedges. Nil slices select the defaults.
func NewTracker(rules []Rule, hedges []string, opts Options) *Tracker {
	if rules == nil {
		rules = DefaultRules
	}
	if hedges == nil {
		hedges = DefaultHedges
	}
	t := &Tracker{opts: opts}
	for _, r := range rules {
		t.rules = append(t.rules, compiledRule{
			Rule:     r,
			coverage: normalizeAll(r.CoverageKeywords),
			context:  normalizeAll(r.ContextKeywords),
		})
	}
	t.hedges = normalizeAll(hedges)
	return t
}

// Analyze derives the dialogue state from messages.
func (t *Tracker) Analyze(messages []domain.Message) *Analysis {
	users := domain.UserTurns(messages)

	var parts []string
	for _, m := range messages {
		if m.Role == domain.RoleUser || (t.opts.IncludeAssistant && m.Role == domain.RoleAssistant) {
			parts = append(parts, m.Content)
		}
	}
	transcript := normalize(strings.Join(parts, "\n"))

	a := &Analysis{
		Dimensions:        make([]Dimension, 0, len(t.rules)),
		MissingDimensions: []DimensionID{},
		UserMessages:      len(users),
		TotalMessages:     len(messages),
	}

	good := 0
	allCovered := true
	for _, r := range t.rules {
		d := Dimension{ID: r.ID, Label: r.Label, Quality: QualityNone}
		d.Covered = containsAny(transcript, r.coverage) && containsAny(transcript, r.context)
		if d.Covered {
			d.Quality = t.grade(r, users)
			if d.Quality == QualityGood {
				good++
			}
			if d.Quality == QualityPoor {
				a.NeedsClarification = true
			}
		} else {
			allCovered = false
			a.MissingDimensions = append(a.MissingDimensions, r.ID)
		}
		a.Dimensions = append(a.Dimensions, d)
	}

	a.ReadyForFinalAnswer = len(t.rules) > 0 &&
		allCovered &&
		good >= t.opts.GoodQualityThreshold &&
		len(users) >= t.opts.MinUserMessages

	return a
}

// grade looks at the most recent user message touching the rule's topic.
func (t *Tracker) grade(r compiledRule, users []domain.Message) Quality {
	for i := len(users) - 1; i >= 0; i-- {
		text := normalize(users[i].Content)
		if !containsAny(text, r.coverage) && !containsAny(text, r.context) {
			continue
		}

		length := utf8.RuneCountInString(strings.TrimSpace(users[i].Content))
		switch {
		case containsAny(text, t.hedges) || length < t.opts.MinAnswerLength:
			return QualityPoor
		case length >= t.opts.GoodAnswerLength && containsAny(text, r.coverage):
			return QualityGood
		default:
			return QualityFair
		}
	}
	return QualityNone
}

// normalize lower-cases s and reduces it to space-separated words padded with
// single spaces, so " kw " substring tests are word-boundary matches.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '’' || r == '\'':
			b.WriteByte('\'')
			lastSpace = false
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalize(kw); strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
