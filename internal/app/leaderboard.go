package app

import (
	"sort"

	"exam-attempt-service/internal/domain"
)

// Rank derives the standings for an exam from its attempts. Only terminal
// attempts count. Order is score descending with earlier submission winning
// ties; ranks are 1-based positions and are never shared.
func Rank(attempts []*domain.Attempt) []domain.LeaderboardEntry {
	scored := make([]*domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Terminal() && a.Result != nil {
			scored = append(scored, a)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Result.Score != scored[j].Result.Score {
			return scored[i].Result.Score > scored[j].Result.Score
		}
		return scored[i].Result.SubmittedAt.Before(scored[j].Result.SubmittedAt)
	})

	entries := make([]domain.LeaderboardEntry, 0, len(scored))
	for i, a := range scored {
		name := a.DisplayName
		if name == "" {
			name = a.Identity
		}
		entries = append(entries, domain.LeaderboardEntry{
			AttemptID:         a.ID,
			DisplayName:       name,
			Score:             a.Result.Score,
			Percentage:        a.Result.Percentage,
			Rank:              i + 1,
			CompletionSeconds: a.Result.SubmittedAt.Sub(a.StartTime).Seconds(),
		})
	}
	return entries
}
