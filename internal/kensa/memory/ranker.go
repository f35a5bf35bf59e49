package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Ranking constants. The recency bonus tops out at recencyWeight for a
// brand-new entry and halves at recencyHalfScaleDays of age.
const (
	substringBonus       = 0.25
	recencyWeight        = 0.10
	recencyHalfScaleDays = 30.0
	minTokenLength       = 3
)

// ScoredMemory is a ranked retrieval hit: the final score (lexical +
// recency) and the entry text. Ephemeral — never stored.
type ScoredMemory struct {
	Score float64
	Text  string
}

// Ranker retrieves the most relevant ledger entries for a query using
// keyword overlap plus a recency bias — no embeddings. A cheap, explainable,
// index-free relevance proxy, sufficient at the expected scale of hundreds
// of memories per user.
type Ranker struct {
	ledger         *Ledger
	candidateLimit int
	now            func() time.Time
}

// NewRanker creates a Ranker over the given ledger with the default
// candidate scan window.
func NewRanker(ledger *Ledger) *Ranker {
	return &Ranker{
		ledger:         ledger,
		candidateLimit: DefaultCandidateLimit,
		now:            time.Now,
	}
}

// Rank returns up to k entries for ownerID whose lexical score against
// query meets minScore, ordered by final score (lexical + recency bonus)
// descending. The recency bonus never makes an otherwise-irrelevant entry
// eligible: the minScore gate applies to the lexical score alone.
//
// A blank query retrieves nothing.
func (r *Ranker) Rank(ctx context.Context, ownerID int64, query string, k int, minScore float64) ([]ScoredMemory, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	candidates, err := r.ledger.RecentCandidates(ctx, ownerID, r.candidateLimit)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var scored []ScoredMemory
	for _, entry := range candidates {
		lexical := lexicalScore(query, entry.Text)
		if lexical < minScore {
			continue
		}

		ageDays := now.Sub(entry.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		bonus := recencyWeight * (1.0 / (1.0 + ageDays/recencyHalfScaleDays))

		scored = append(scored, ScoredMemory{
			Score: lexical + bonus,
			Text:  entry.Text,
		})
	}

	// Candidates arrive newest first, so a stable sort breaks score ties in
	// favour of more recent entries.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// tokenize lower-cases text and extracts alphanumeric/underscore runs,
// dropping anything shorter than minTokenLength as noise.
func tokenize(text string) []string {
	toks := tokenPattern.FindAllString(strings.ToLower(text), -1)
	kept := toks[:0]
	for _, t := range toks {
		if len(t) >= minTokenLength {
			kept = append(kept, t)
		}
	}
	return kept
}

// lexicalScore is the token-overlap ratio |query ∩ doc| / |query|, plus a
// flat bonus when the whole lower-cased query appears verbatim in the
// document. The bonus rewards exact phrase matches that a token-set score
// under-weights. Returns 0 when the query has no usable tokens.
func lexicalScore(query, doc string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	d := strings.ToLower(doc)

	qToks := tokenize(q)
	if len(qToks) == 0 {
		return 0
	}

	dSet := make(map[string]struct{})
	for _, t := range tokenize(d) {
		dSet[t] = struct{}{}
	}

	qSet := make(map[string]struct{}, len(qToks))
	for _, t := range qToks {
		qSet[t] = struct{}{}
	}

	overlap := 0
	for t := range qSet {
		if _, ok := dSet[t]; ok {
			overlap++
		}
	}

	score := float64(overlap) / float64(len(qSet))
	if q != "" && strings.Contains(d, q) {
		score += substringBonus
	}
	return score
}
