package textvec

import "strings"

// Option applies a configuration option to a Space under construction.
type Option func(*Space)

// WithStopwords replaces the default English stop-word set.
func WithStopwords(words []string) Option {
	return func(s *Space) {
		if words == nil {
			return
		}
		s.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			s.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithSentinel sets the token substituted for documents that normalize to nothing.
func WithSentinel(token string) Option {
	return func(s *Space) {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			s.sentinel = token
		}
	}
}
