// Package router classifies incoming analytics questions into one of three
// processing intents using lexical triggers. It is a static, total,
// stateless function of the query text — no learning, no external calls.
package router

import (
	"regexp"
	"strings"
)

// Intent is the classified category of a user query.
type Intent string

const (
	// IntentPredictive routes to the recommendation/strategy branch.
	IntentPredictive Intent = "predictive"
	// IntentSQLAnalytic routes to the SQL generation + execution branch.
	IntentSQLAnalytic Intent = "sql_analytic"
	// IntentPlainQA routes to the direct question-answering branch.
	IntentPlainQA Intent = "plain_qa"
)

// sqlKeywordPattern catches queries that mention SQL structure directly
// even without any analytic trigger word.
var sqlKeywordPattern = regexp.MustCompile(`\bfrom\b|\bselect\b`)

// Lexicon holds the trigger-phrase sets driving classification. The
// zero value classifies everything as PlainQA; use DefaultLexicon or
// LoadLexicon for a useful instance.
type Lexicon struct {
	// Predictive phrases signal a request for recommendations or strategy.
	Predictive []string `yaml:"predictive"`
	// SQL phrases signal a request best answered by querying data.
	SQL []string `yaml:"sql"`
}

// DefaultLexicon returns the built-in trigger sets.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Predictive: []string{
			"suggest", "recommend", "next test", "predict",
			"what should we do", "how to improve", "strategy", "proposal",
		},
		SQL: []string{
			"show", "give", "find", "compare", "insight", "trend", "top",
			"count", "sum", "percent", "table", "rows", "columns",
		},
	}
}

// Router classifies queries against a fixed lexicon.
type Router struct {
	lexicon Lexicon
}

// New returns a Router over the given lexicon. An empty lexicon falls back
// to the defaults.
func New(lexicon Lexicon) *Router {
	if len(lexicon.Predictive) == 0 && len(lexicon.SQL) == 0 {
		lexicon = DefaultLexicon()
	}
	return &Router{lexicon: lexicon}
}

// Classify maps a query to an intent. Checks run in priority order:
// predictive first, SQL second, PlainQA as the default. A query matching
// both trigger sets routes Predictive — when a question is ambiguous
// between strategy and raw analytics, the strategic framing wins.
func (r *Router) Classify(query string) Intent {
	q := strings.ToLower(query)

	for _, trigger := range r.lexicon.Predictive {
		if strings.Contains(q, trigger) {
			return IntentPredictive
		}
	}

	for _, trigger := range r.lexicon.SQL {
		if strings.Contains(q, trigger) {
			return IntentSQLAnalytic
		}
	}
	if sqlKeywordPattern.MatchString(q) {
		return IntentSQLAnalytic
	}

	return IntentPlainQA
}
