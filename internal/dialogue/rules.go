package dialogue

// DimensionID names one topic axis the dialogue must explore.
type DimensionID string

const (
	DimensionEnergy      DimensionID = "energy"      // extraversion / introversion
	DimensionInformation DimensionID = "information" // sensing / intuition
	DimensionDecisions   DimensionID = "decisions"   // thinking / feeling
	DimensionLifestyle   DimensionID = "lifestyle"   // judging / perceiving
)

// Rule is one row of the coverage table. A dimension counts as discussed only
// when the transcript hits a coverage keyword AND a context keyword.
type Rule struct {
	ID               DimensionID
	Label            string
	CoverageKeywords []string
	ContextKeywords  []string
}

// DefaultRules is the MBTI rules table, in question priority order.
var DefaultRules = []Rule{
	{
		ID:    DimensionEnergy,
		Label: "where you get your energy (people vs. time alone)",
		CoverageKeywords: []string{
			"alone", "people", "social", "socializing", "party", "parties", "crowd", "crowds",
			"friends", "introvert", "introverted", "extrovert", "extroverted", "outgoing",
			"quiet", "by myself", "solitude", "group", "groups",
		},
		ContextKeywords: []string{
			"recharge", "recharging", "energy", "energized", "energizes", "drained", "draining",
			"exhausted", "tired", "weekend", "weekends", "relax", "relaxing", "unwind", "free time",
		},
	},
	{
		ID:    DimensionInformation,
		Label: "how you take in information (details vs. big picture)",
		CoverageKeywords: []string{
			"details", "detail", "detailed", "step-by-step", "step by step", "facts", "practical",
			"concrete", "hands-on", "big picture", "ideas", "possibilities", "imagine", "abstract",
			"intuition", "theory", "theories", "patterns",
		},
		ContextKeywords: []string{
			"instructions", "learn", "learning", "information", "explain", "explained",
			"approach", "focus", "notice", "understand", "new things", "study", "studying",
		},
	},
	{
		ID:    DimensionDecisions,
		Label: "how you make decisions (logic vs. feelings)",
		CoverageKeywords: []string{
			"logic", "logical", "logically", "feelings", "emotions", "emotional", "values",
			"objective", "fair", "fairness", "harmony", "empathy", "heart", "head",
			"pros and cons", "rational",
		},
		ContextKeywords: []string{
			"decide", "deciding", "decision", "decisions", "choose", "choosing", "choice",
			"choices", "conflict", "conflicts", "analysis", "analyze", "judge", "weigh",
		},
	},
	{
		ID:    DimensionLifestyle,
		Label: "how you organize your life (planned vs. flexible)",
		CoverageKeywords: []string{
			"plan", "plans", "planning", "planned", "organized", "structure", "structured",
			"spontaneous", "flexible", "flexibility", "routine", "routines", "improvise",
			"to-do", "go with the flow", "last minute", "last-minute",
		},
		ContextKeywords: []string{
			"schedule", "schedules", "day", "days", "week", "work", "project", "projects",
			"trip", "trips", "vacation", "deadline", "deadlines", "calendar", "life",
		},
	},
}

// DefaultHedges mark an answer as too uncertain to grade well.
var DefaultHedges = []string{
	"not sure", "i don't know", "i dont know", "idk", "it depends",
	"maybe", "no idea", "hard to say", "can't decide", "cannot decide", "both equally",
	"sometimes yes sometimes no",
}
