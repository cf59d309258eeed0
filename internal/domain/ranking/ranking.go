// Package ranking scores candidate events against a free-text query.
package ranking

import (
	"fmt"
	"sort"

	"github.com/okian/eventmatch/internal/domain/textvec"
)

// DefaultThreshold is the broadcast cutoff a similarity must exceed.
const DefaultThreshold = 0.1

// Candidate is an event eligible for ranking.
type Candidate struct {
	ID     string
	Vector textvec.Vector
}

// Document is an (id, text) pair from the corpus.
type Document struct {
	ID   string
	Text string
}

// Scored is a ranked candidate.
type Scored struct {
	ID    string  `json:"event_id"`
	Score float64 `json:"score"`
}

// Ranker ranks candidates within a single vector space. It holds no mutable
// state and is safe for concurrent use.
type Ranker struct {
	space *textvec.Space
}

// New creates a Ranker over space.
func New(space *textvec.Space) *Ranker {
	return &Ranker{space: space}
}

// Space returns the vector space the ranker scores in.
func (r *Ranker) Space() *textvec.Space { return r.space }

// Candidates vectorizes each document once, preserving corpus order.
func (r *Ranker) Candidates(docs []Document) []Candidate {
	out := make([]Candidate, len(docs))
	for i, d := range docs {
		out[i] = Candidate{ID: d.ID, Vector: r.space.Vectorize(d.Text)}
	}
	return out
}

// Rank scores every candidate against query and returns them by descending
// score. Equal scores keep insertion order. Excluded ids are removed after
// sorting, so the relative order of the rest is unchanged.
func (r *Ranker) Rank(query string, candidates []Candidate, exclude map[string]struct{}) ([]Scored, error) {
	if r.space == nil {
		return nil, ErrNoSpace
	}
	q := r.space.Vectorize(query)

	seen := make(map[string]struct{}, len(candidates))
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("rank %q: %w", c.ID, ErrDuplicateCandidate)
		}
		seen[c.ID] = struct{}{}
		scored = append(scored, Scored{ID: c.ID, Score: textvec.Similarity(q, c.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(exclude) == 0 {
		return scored, nil
	}
	kept := scored[:0]
	for _, s := range scored {
		if _, skip := exclude[s.ID]; skip {
			continue
		}
		kept = append(kept, s)
	}
	return kept, nil
}

// BestMatch returns the highest ranked candidate that is not excluded.
// ok is false when the pool is empty or fully excluded.
func (r *Ranker) BestMatch(query string, candidates []Candidate, exclude map[string]struct{}) (id string, ok bool, err error) {
	ranked, err := r.Rank(query, candidates, exclude)
	if err != nil {
		return "", false, err
	}
	if len(ranked) == 0 {
		return "", false, nil
	}
	return ranked[0].ID, true, nil
}

// Score returns the similarity between query and a single candidate vector.
func (r *Ranker) Score(query string, candidate textvec.Vector) float64 {
	if r.space == nil {
		return 0
	}
	return textvec.Similarity(r.space.Vectorize(query), candidate)
}

// PassesThreshold reports whether query is similar enough to candidate to
// warrant a notification. The score must strictly exceed threshold.
func (r *Ranker) PassesThreshold(query string, candidate textvec.Vector, threshold float64) bool {
	return r.Score(query, candidate) > threshold
}

// ExcludeSet builds an exclusion set from ids.
func ExcludeSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
