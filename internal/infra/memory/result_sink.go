package memory

import (
	"context"
	"sort"
	"sync"

	"mission-quiz-service/internal/domain"
)

// ResultSink keeps passed attempt results in memory.
type ResultSink struct {
	mu      sync.RWMutex
	results []domain.AttemptResult
}

func NewResultSink() *ResultSink {
	return &ResultSink{}
}

func (s *ResultSink) Record(_ context.Context, result domain.AttemptResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns a copy of everything recorded so far.
func (s *ResultSink) Results() []domain.AttemptResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AttemptResult(nil), s.results...)
}

// Fragments lists the distinct rewards a player has earned, sorted.
func (s *ResultSink) Fragments(_ context.Context, playerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, r := range s.results {
		if r.PlayerID != playerID || r.Reward == "" {
			continue
		}
		if _, ok := seen[r.Reward]; ok {
			continue
		}
		seen[r.Reward] = struct{}{}
		out = append(out, r.Reward)
	}
	sort.Strings(out)
	return out, nil
}
