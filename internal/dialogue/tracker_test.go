package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

func user(s string) domain.Message      { return domain.Message{Role: domain.RoleUser, Content: s} }
func assistant(s string) domain.Message { return domain.Message{Role: domain.RoleAssistant, Content: s} }

var fullTranscript = []domain.Message{
	assistant("Hi! To start, how do you like to spend a free evening?"),
	user("After a long week I recharge alone with a book and a quiet evening at home."),
	assistant("Nice. When you learn something new, how do you approach it?"),
	user("When I learn something new I want step-by-step instructions and concrete examples."),
	assistant("And when you face a tough choice?"),
	user("I make decisions with a logical analysis of pros and cons rather than gut feelings."),
	assistant("How do you organize your days?"),
	user("I like a flexible schedule and prefer to improvise instead of planning every day."),
}

func TestAnalyze_Greeting(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())
	a := tr.Analyze([]domain.Message{user("hi")})

	assert.Equal(t, 0, a.CoveredCount())
	assert.False(t, a.ReadyForFinalAnswer)
	assert.False(t, a.NeedsClarification)
	assert.Equal(t, []DimensionID{DimensionEnergy, DimensionInformation, DimensionDecisions, DimensionLifestyle}, a.MissingDimensions)

	next, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, DimensionEnergy, next)
}

func TestAnalyze_AllDimensionsHighQuality(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())
	a := tr.Analyze(fullTranscript)

	require.Equal(t, 4, a.CoveredCount())
	for _, d := range a.Dimensions {
		assert.Equal(t, QualityGood, d.Quality, "dimension %s", d.ID)
	}
	assert.Empty(t, a.MissingDimensions)
	assert.True(t, a.ReadyForFinalAnswer)
	assert.Equal(t, 4, a.UserMessages)
	assert.Equal(t, 8, a.TotalMessages)

	_, ok := a.Next()
	assert.False(t, ok)
}

func TestAnalyze_Deterministic(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())
	first := tr.Analyze(fullTranscript)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tr.Analyze(fullTranscript))
	}
}

func TestAnalyze_SingleKeywordDoesNotCover(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())

	// "friends" is a coverage keyword but nothing says how it relates to energy
	a := tr.Analyze([]domain.Message{user("My friends are all really into board games lately.")})
	assert.Equal(t, 0, a.CoveredCount())
}

func TestAnalyze_WordBoundaries(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())

	// "planet" must not match "plan", "alonely" must not match "alone"
	a := tr.Analyze([]domain.Message{user("The planet spins every day and the alonely sun gives energy.")})
	assert.Equal(t, 0, a.CoveredCount())
}

func TestAnalyze_AssistantTurnsIgnoredByDefault(t *testing.T) {
	msgs := []domain.Message{
		assistant("Do you recharge alone or with people after a long week?"),
		user("hmm"),
	}

	a := NewTracker(nil, nil, DefaultOptions()).Analyze(msgs)
	assert.Equal(t, 0, a.CoveredCount())

	opts := DefaultOptions()
	opts.IncludeAssistant = true
	a = NewTracker(nil, nil, opts).Analyze(msgs)
	assert.Equal(t, 1, a.CoveredCount())
	assert.Equal(t, QualityNone, a.Dimensions[0].Quality, "no user answer touches the topic")
}

func TestAnalyze_QualityGrades(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())

	tests := []struct {
		name    string
		answer  string
		quality Quality
	}{
		{"hedge", "I'm not sure, I recharge alone sometimes I guess.", QualityPoor},
		{"it depends", "It depends, parties can recharge me or drain me.", QualityPoor},
		{"too short", "recharge alone", QualityPoor},
		{"fair without coverage keyword in latest", "Weekends are for relaxing.", QualityFair},
		{"good", "I really recharge alone, a quiet weekend at home is perfect.", QualityGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := []domain.Message{user("I recharge alone most of the time honestly."), user(tt.answer)}
			a := tr.Analyze(msgs)
			require.True(t, a.Dimensions[0].Covered)
			assert.Equal(t, tt.quality, a.Dimensions[0].Quality)
			assert.Equal(t, tt.quality == QualityPoor, a.NeedsClarification)
		})
	}
}

func TestAnalyze_ClarifyDimension(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())
	a := tr.Analyze([]domain.Message{user("Not sure, maybe I recharge alone?")})

	d, ok := a.ClarifyDimension()
	require.True(t, ok)
	assert.Equal(t, DimensionEnergy, d.ID)
	assert.True(t, a.NeedsClarification)
}

func TestAnalyze_ReadinessThresholds(t *testing.T) {
	t.Run("coverage with too few good answers", func(t *testing.T) {
		msgs := []domain.Message{
			user("I recharge alone."),
			user("Step-by-step instructions please."),
			user("Logical decisions."),
			user("Flexible schedule."),
		}
		a := NewTracker(nil, nil, DefaultOptions()).Analyze(msgs)
		assert.Equal(t, 4, a.CoveredCount())
		assert.False(t, a.ReadyForFinalAnswer)
	})

	t.Run("three of four good is enough", func(t *testing.T) {
		msgs := append([]domain.Message{}, fullTranscript[:6]...)
		msgs = append(msgs, user("Flexible schedule, really."))
		a := NewTracker(nil, nil, DefaultOptions()).Analyze(msgs)
		assert.Equal(t, 4, a.CoveredCount())
		assert.True(t, a.ReadyForFinalAnswer)
	})

	t.Run("four of four required", func(t *testing.T) {
		opts := DefaultOptions()
		opts.GoodQualityThreshold = 4
		msgs := append([]domain.Message{}, fullTranscript[:6]...)
		msgs = append(msgs, user("Flexible schedule, really."))
		a := NewTracker(nil, nil, opts).Analyze(msgs)
		assert.False(t, a.ReadyForFinalAnswer)
	})

	t.Run("minimum user messages", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MinUserMessages = 5
		a := NewTracker(nil, nil, opts).Analyze(fullTranscript)
		assert.Equal(t, 4, a.CoveredCount())
		assert.False(t, a.ReadyForFinalAnswer)
	})
}

func TestAnalyze_CoverageIsMonotonic(t *testing.T) {
	tr := NewTracker(nil, nil, DefaultOptions())

	var prev *Analysis
	for i := 1; i <= len(fullTranscript); i++ {
		a := tr.Analyze(fullTranscript[:i])
		if prev != nil {
			for j, d := range prev.Dimensions {
				if d.Covered {
					assert.True(t, a.Dimensions[j].Covered, "dimension %s lost coverage at prefix %d", d.ID, i)
				}
			}
			assert.GreaterOrEqual(t, a.CoveredCount(), prev.CoveredCount())
		}
		if a.CoveredCount() < len(a.Dimensions) {
			assert.False(t, a.ReadyForFinalAnswer, "ready with missing dimensions at prefix %d", i)
		}
		prev = a
	}
}

func TestNewTracker_CustomRules(t *testing.T) {
	rules := []Rule{{ID: "pets", Label: "pets", CoverageKeywords: []string{"dog", "cat"}, ContextKeywords: []string{"own", "adopt"}}}
	opts := Options{GoodQualityThreshold: 1, MinUserMessages: 1, MinAnswerLength: 5, GoodAnswerLength: 10}
	a := NewTracker(rules, []string{}, opts).Analyze([]domain.Message{user("I want to adopt a dog next spring.")})

	assert.True(t, a.ReadyForFinalAnswer)
	assert.Equal(t, QualityGood, a.Dimensions[0].Quality)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, " i don't like step-by-step lists ", normalize("I DON’T like: step-by-step lists!!"))
	assert.Equal(t, " ", normalize(""))
}
