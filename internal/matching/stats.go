package matching

// Summary holds the aggregate statistics of one matching run
type Summary struct {
	GroupCount     int     `json:"group_count"`
	MatchedCount   int     `json:"matched_count"`
	UnmatchedCount int     `json:"unmatched_count"`
	AvgGroupSize   float64 `json:"avg_group_size"`
	AvgScore       float64 `json:"avg_score"`      // average over the flattened pair-score list, not over group averages
	MinThreshold   float64 `json:"min_threshold"`
	MaxThreshold   float64 `json:"max_threshold"`
}

// Summarize derives summary metrics from a set of formed groups.
// AvgScore averages every individual pairwise score across all groups.
func Summarize(groups []GroupCandidate, totalParticipants, unmatchedCount int) Summary {
	summary := Summary{
		GroupCount:     len(groups),
		MatchedCount:   totalParticipants - unmatchedCount,
		UnmatchedCount: unmatchedCount,
	}
	if len(groups) == 0 {
		return summary
	}

	sizeSum := 0
	scoreSum := 0.0
	scoreCount := 0
	for i, g := range groups {
		sizeSum += g.Size
		for _, p := range g.Pairs {
			scoreSum += p.Score
			scoreCount++
		}
		if i == 0 {
			summary.MinThreshold = g.Threshold
			summary.MaxThreshold = g.Threshold
			continue
		}
		if g.Threshold < summary.MinThreshold {
			summary.MinThreshold = g.Threshold
		}
		if g.Threshold > summary.MaxThreshold {
			summary.MaxThreshold = g.Threshold
		}
	}

	summary.AvgGroupSize = round2(float64(sizeSum) / float64(len(groups)))
	if scoreCount > 0 {
		summary.AvgScore = round2(scoreSum / float64(scoreCount))
	}
	return summary
}

// FlattenScores returns every stored pairwise score of a member score-map set,
// counting each unordered pair once. Used when recomputing one group's
// statistics after a manual edit.
func FlattenScores(memberScores map[uint]map[uint]float64) []float64 {
	scores := make([]float64, 0)
	for a, row := range memberScores {
		for b, score := range row {
			if a < b { // each unordered pair once
				scores = append(scores, score)
			}
		}
	}
	return scores
}
