// Package textvec builds term-weighted vector spaces over event descriptions.
//
// A Space is fitted once over a corpus snapshot and is immutable afterwards,
// so it can be shared by concurrent readers without locking. Adding a
// document means building a new Space.
package textvec

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

const defaultSentinel = "unknown"

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Vector is a sparse term -> weight mapping. Weights are non-negative.
type Vector map[string]float64

// Norm returns the L2 magnitude of v. Terms are summed in sorted order so the
// result does not depend on map iteration.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, term := range sortedTerms(v) {
		w := v[term]
		sum += w * w
	}
	return math.Sqrt(sum)
}

// IsZero reports whether v has zero magnitude.
func (v Vector) IsZero() bool {
	for _, w := range v {
		if w != 0 {
			return false
		}
	}
	return true
}

// Space holds a fixed vocabulary with document frequencies and IDF weights.
type Space struct {
	docFreq   map[string]int
	idf       map[string]float64
	documents int
	stopwords map[string]struct{}
	sentinel  string
}

// Build fits a Space over corpus. Each document is tokenized, document
// frequencies are counted once per document and IDF is the smoothed
// ln((1+N)/(1+df)) + 1, which is strictly positive for every vocabulary term.
func Build(corpus []string, opts ...Option) (*Space, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("build vector space: empty corpus: %w", ErrConfiguration)
	}

	s := &Space{
		docFreq:   make(map[string]int),
		stopwords: defaultStopwords(),
		sentinel:  defaultSentinel,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, text := range corpus {
		tokens := s.tokenize(text)
		if len(tokens) == 0 {
			tokens = []string{s.sentinel}
		}
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			s.docFreq[tok]++
		}
	}
	if len(s.docFreq) == 0 {
		return nil, fmt.Errorf("build vector space: no terms in corpus: %w", ErrConfiguration)
	}

	s.documents = len(corpus)
	n := float64(s.documents)
	s.idf = make(map[string]float64, len(s.docFreq))
	for term, df := range s.docFreq {
		s.idf[term] = math.Log((1+n)/(1+float64(df))) + 1.0
	}
	return s, nil
}

// Vectorize maps text into the space. Term frequency is multiplied by the
// fitted IDF and the result is L2-normalized. Terms outside the vocabulary
// are dropped; text with no known terms yields an empty vector.
func (s *Space) Vectorize(text string) Vector {
	counts := make(map[string]int)
	for _, tok := range s.tokenize(text) {
		if _, ok := s.idf[tok]; ok {
			counts[tok]++
		}
	}
	vec := make(Vector, len(counts))
	for term, c := range counts {
		vec[term] = float64(c) * s.idf[term]
	}
	norm := vec.Norm()
	if norm > 0 {
		for term := range vec {
			vec[term] /= norm
		}
	}
	return vec
}

// Similarity returns the cosine similarity of a and b in [0,1]. Either vector
// having zero magnitude yields 0.
func Similarity(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := make([]string, 0, len(small))
	for term := range small {
		if _, ok := large[term]; ok {
			shared = append(shared, term)
		}
	}
	sort.Strings(shared)
	dot := 0.0
	for _, term := range shared {
		dot += a[term] * b[term]
	}
	sim := dot / (na * nb)
	return math.Max(0, math.Min(1, sim))
}

// Size returns the vocabulary size.
func (s *Space) Size() int { return len(s.docFreq) }

// Documents returns the number of documents the space was fitted on.
func (s *Space) Documents() int { return s.documents }

// Vocabulary returns the fitted terms in sorted order.
func (s *Space) Vocabulary() []string {
	terms := make([]string, 0, len(s.docFreq))
	for term := range s.docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// DocumentFrequency returns how many corpus documents contain term.
func (s *Space) DocumentFrequency(term string) int { return s.docFreq[term] }

// IDF returns the fitted weight for term, or 0 when term is not in the vocabulary.
func (s *Space) IDF(term string) float64 { return s.idf[term] }

// Tokens exposes the normalization pipeline used by Build and Vectorize.
func (s *Space) Tokens(text string) []string { return s.tokenize(text) }

func (s *Space) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := s.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func sortedTerms(v Vector) []string {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
