// Package predict forecasts a user's next dominant interest with a
// simulated-annealing search over the interest alphabet.
//
// The temperature schedule is deterministic; the move sequence is not. Two
// runs over identical history can disagree unless they share a seed.
package predict

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Default schedule constants.
const (
	DefaultInitialTemperature = 1.0
	DefaultCoolingFactor      = 0.9
	DefaultMinTemperature     = 1e-4
	DefaultSamplesPerLevel    = 100
)

// Source is the random stream consumed by a search. *rand.Rand satisfies it.
// A Source must not be shared between concurrent searches.
type Source interface {
	Intn(n int) int
	Float64() float64
}

// Alphabet is the sorted, de-duplicated set of interest labels a search may visit.
type Alphabet []string

// NewAlphabet collects distinct non-blank labels in sorted order.
func NewAlphabet(labels ...string) Alphabet {
	seen := make(map[string]struct{}, len(labels))
	out := make(Alphabet, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether label is in the alphabet.
func (a Alphabet) Contains(label string) bool {
	i := sort.SearchStrings(a, label)
	return i < len(a) && a[i] == label
}

// Frequencies counts exact label occurrences in history.
func Frequencies(history []string) map[string]int {
	counts := make(map[string]int, len(history))
	for _, h := range history {
		counts[h]++
	}
	return counts
}

// Annealer runs the search. It is immutable after construction.
type Annealer struct {
	initialTemp float64
	cooling     float64
	minTemp     float64
	samples     int
}

// NewAnnealer creates an Annealer with the default schedule, adjusted by opts.
func NewAnnealer(opts ...Option) *Annealer {
	a := &Annealer{
		initialTemp: DefaultInitialTemperature,
		cooling:     DefaultCoolingFactor,
		minTemp:     DefaultMinTemperature,
		samples:     DefaultSamplesPerLevel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Levels returns how many temperature levels the schedule visits.
func (a *Annealer) Levels() int {
	n := 0
	for t := a.initialTemp; t > a.minTemp; t *= a.cooling {
		n++
	}
	return n
}

// Samples returns the number of moves drawn per level.
func (a *Annealer) Samples() int { return a.samples }

// Result describes a finished search.
type Result struct {
	Interest  string `json:"interest"`
	Score     int    `json:"score"`
	Seed      string `json:"seed"`
	Accepted  int    `json:"accepted"`
	Improved  int    `json:"improved"`
	Levels    int    `json:"levels"`
	Evaluated int    `json:"evaluated"`
}

// Predict returns the best interest found starting from seed.
func (a *Annealer) Predict(seed string, history []string, alphabet Alphabet, rng Source) (string, error) {
	res, err := a.Run(seed, history, alphabet, rng)
	if err != nil {
		return "", err
	}
	return res.Interest, nil
}

// Run performs the search and reports its trace counters.
//
// Each level draws a fixed number of labels uniformly from alphabet. A draw
// scoring above the best so far is always adopted; otherwise it is adopted
// with probability exp((score-best)/T). Only a strictly higher score replaces
// the best state, so ties keep the earlier label. The seed is trimmed and
// must belong to alphabet.
func (a *Annealer) Run(seed string, history []string, alphabet Alphabet, rng Source) (Result, error) {
	if len(alphabet) == 0 {
		return Result{}, ErrEmptyAlphabet
	}
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return Result{}, ErrMissingSeed
	}
	if !alphabet.Contains(seed) {
		return Result{}, fmt.Errorf("predict %q: %w", seed, ErrSeedNotInAlphabet)
	}
	if rng == nil {
		return Result{}, fmt.Errorf("predict %q: %w", seed, ErrNoSource)
	}

	freq := Frequencies(history)
	current := seed
	best := current
	bestScore := freq[current]
	res := Result{Seed: seed}

	for t := a.initialTemp; t > a.minTemp; t *= a.cooling {
		res.Levels++
		for i := 0; i < a.samples; i++ {
			candidate := alphabet[rng.Intn(len(alphabet))]
			score := freq[candidate]
			res.Evaluated++
			if acceptance(bestScore, score, t) <= rng.Float64() {
				continue
			}
			current = candidate
			res.Accepted++
			if score > bestScore {
				best, bestScore = current, score
				res.Improved++
			}
		}
	}

	res.Interest = best
	res.Score = bestScore
	return res, nil
}

func acceptance(bestScore, score int, temperature float64) float64 {
	if score > bestScore {
		return 1.0
	}
	return math.Exp(float64(score-bestScore) / temperature)
}
