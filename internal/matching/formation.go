package matching

import (
	"fmt"
	"sort"
)

// NotEnoughParticipantsWarning is returned when a pool cannot form any group
const NotEnoughParticipantsWarning = "Not enough participants. Minimum 3 required"

// FormationConfig controls the group formation heuristic
type FormationConfig struct {
	Thresholds   []float64 // descending minimum-average-score schedule
	SeedAttempts int       // greedy trials per threshold pass
	MinGroupSize int
	MaxGroupSize int
}

// DefaultFormationConfig returns the standard threshold schedule and bounds.
// The terminal 0 guarantees every remaining cluster of at least MinGroupSize
// participants eventually groups regardless of compatibility.
func DefaultFormationConfig() FormationConfig {
	return FormationConfig{
		Thresholds:   []float64{70, 65, 60, 55, 50, 0},
		SeedAttempts: 10,
		MinGroupSize: 3,
		MaxGroupSize: 5,
	}
}

// MemberPair is one scored unordered pair within a formed group
type MemberPair struct {
	AID   uint    `json:"a_id"`
	BID   uint    `json:"b_id"`
	Score float64 `json:"score"`
}

// GroupCandidate is one formed group before persistence
type GroupCandidate struct {
	Members     []Candidate  `json:"members"`
	Pairs       []MemberPair `json:"pairs"`
	Size        int          `json:"size"`
	AvgScore    float64      `json:"avg_score"`
	MinScore    float64      `json:"min_score"`
	Threshold   float64      `json:"threshold"`   // threshold that admitted this group
	SeedAttempt int          `json:"seed_attempt"` // 1-based winning attempt at that threshold
}

// ThresholdStats is the per-threshold breakdown of a formation run
type ThresholdStats struct {
	Threshold           float64 `json:"threshold"`
	GroupsFormed        int     `json:"groups_formed"`
	ParticipantsMatched int     `json:"participants_matched"`
}

// FormationResult is the complete outcome of one formation run
type FormationResult struct {
	Groups            []GroupCandidate `json:"groups"`
	Unmatched         []Candidate      `json:"unmatched"`
	PerThreshold      []ThresholdStats `json:"per_threshold"`
	Warnings          []string         `json:"warnings"`
	TotalParticipants int              `json:"total_participants"`
}

// MatchedCount returns the number of participants placed into groups
func (r *FormationResult) MatchedCount() int {
	count := 0
	for _, g := range r.Groups {
		count += g.Size
	}
	return count
}

// FormGroups partitions candidates into compatibility groups using a
// descending threshold schedule with multiple greedy seed attempts per
// threshold. Purely computational, no side effects. Deterministic: seeds and
// tie-breaks follow stable input order, so the same input always produces the
// same partition.
func FormGroups(candidates []Candidate, cfg FormationConfig) *FormationResult {
	result := &FormationResult{
		Groups:            make([]GroupCandidate, 0),
		Unmatched:         make([]Candidate, 0),
		PerThreshold:      make([]ThresholdStats, 0, len(cfg.Thresholds)),
		Warnings:          make([]string, 0),
		TotalParticipants: len(candidates),
	}

	if len(candidates) < cfg.MinGroupSize {
		result.Warnings = append(result.Warnings, NotEnoughParticipantsWarning)
		result.Unmatched = append(result.Unmatched, candidates...)
		return result
	}

	index := BuildScoreIndex(candidates)
	assigned := make(map[uint]bool, len(candidates))

	for _, threshold := range cfg.Thresholds {
		stats := ThresholdStats{Threshold: threshold}

		for {
			remaining := unassignedOf(candidates, assigned)
			if len(remaining) < cfg.MinGroupSize {
				break
			}

			groups, seedAttempt := bestAttempt(remaining, threshold, index, cfg)
			if len(groups) == 0 {
				break
			}

			for _, members := range groups {
				group := buildGroupCandidate(members, threshold, seedAttempt, index)
				result.Groups = append(result.Groups, group)
				stats.GroupsFormed++
				stats.ParticipantsMatched += group.Size
				for _, m := range members {
					assigned[m.ParticipantID] = true
				}
			}
		}

		result.PerThreshold = append(result.PerThreshold, stats)
		if stats.GroupsFormed > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Matched %d participants into %d groups at threshold %.0f%%",
				stats.ParticipantsMatched, stats.GroupsFormed, threshold))
		}
	}

	result.Unmatched = unassignedOf(candidates, assigned)
	if len(result.Unmatched) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d participants could not be matched into any group", len(result.Unmatched)))
	}

	return result
}

// bestAttempt runs up to cfg.SeedAttempts greedy trials over the pool, each
// seeded by a different participant in input order, and returns the group set
// of the attempt with maximum coverage (ties keep the first found) together
// with its 1-based attempt number. Full coverage stops further seeds early.
func bestAttempt(pool []Candidate, threshold float64, index ScoreIndex, cfg FormationConfig) ([][]Candidate, int) {
	var bestGroups [][]Candidate
	bestCoverage := 0
	bestSeed := 0

	seeds := cfg.SeedAttempts
	if seeds > len(pool) {
		seeds = len(pool)
	}

	for i := 0; i < seeds; i++ {
		groups := runAttempt(pool, i, threshold, index, cfg)
		coverage := 0
		for _, g := range groups {
			coverage += len(g)
		}
		if coverage > bestCoverage {
			bestGroups = groups
			bestCoverage = coverage
			bestSeed = i + 1
		}
		if coverage == len(pool) {
			break
		}
	}

	return bestGroups, bestSeed
}

// runAttempt is one greedy trial: the first group starts from pool[seedIdx],
// subsequent groups from the first still-available participant. A formed
// group below the minimum size is discarded and the attempt ends.
func runAttempt(pool []Candidate, seedIdx int, threshold float64, index ScoreIndex, cfg FormationConfig) [][]Candidate {
	available := make([]Candidate, len(pool))
	copy(available, pool)

	var groups [][]Candidate
	first := true

	for len(available) >= cfg.MinGroupSize {
		seed := available[0]
		if first {
			seed = pool[seedIdx]
			first = false
		}

		group := buildGroup(seed, available, threshold, index, cfg)
		if len(group) < cfg.MinGroupSize {
			break
		}

		groups = append(groups, group)
		available = removeAll(available, group)
	}

	return groups
}

// buildGroup grows one group from a seed. Each round scores every remaining
// candidate by its average against all current members, keeps those at or
// above the threshold, and admits the best, until the group is full or no
// candidate qualifies. Admission is average-based on purpose: the minimum
// pairwise score inside the forming group is not re-validated.
func buildGroup(seed Candidate, available []Candidate, threshold float64, index ScoreIndex, cfg FormationConfig) []Candidate {
	group := []Candidate{seed}
	remaining := removeAll(available, group)

	for len(group) < cfg.MaxGroupSize && len(remaining) > 0 {
		type scored struct {
			candidate Candidate
			avg       float64
		}
		qualified := make([]scored, 0, len(remaining))
		for _, c := range remaining {
			avg := averageAgainst(c, group, index)
			if avg >= threshold {
				qualified = append(qualified, scored{candidate: c, avg: avg})
			}
		}
		if len(qualified) == 0 {
			break
		}

		sort.SliceStable(qualified, func(i, j int) bool {
			return qualified[i].avg > qualified[j].avg
		})

		admitted := qualified[0].candidate
		group = append(group, admitted)
		remaining = removeAll(remaining, []Candidate{admitted})
	}

	return group
}

// averageAgainst returns a candidate's average pairwise score against the
// current group members
func averageAgainst(c Candidate, group []Candidate, index ScoreIndex) float64 {
	sum := 0.0
	for _, m := range group {
		if score, ok := index.Lookup(c.ParticipantID, m.ParticipantID); ok {
			sum += score.Total
		}
	}
	return sum / float64(len(group))
}

// buildGroupCandidate derives the per-group pair list and statistics
func buildGroupCandidate(members []Candidate, threshold float64, seedAttempt int, index ScoreIndex) GroupCandidate {
	pairs := make([]MemberPair, 0, len(members)*(len(members)-1)/2)
	sum := 0.0
	min := 0.0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			score, _ := index.Lookup(members[i].ParticipantID, members[j].ParticipantID)
			pairs = append(pairs, MemberPair{
				AID:   members[i].ParticipantID,
				BID:   members[j].ParticipantID,
				Score: score.Total,
			})
			sum += score.Total
			if len(pairs) == 1 || score.Total < min {
				min = score.Total
			}
		}
	}

	avg := 0.0
	if len(pairs) > 0 {
		avg = round2(sum / float64(len(pairs)))
	}

	return GroupCandidate{
		Members:     members,
		Pairs:       pairs,
		Size:        len(members),
		AvgScore:    avg,
		MinScore:    min,
		Threshold:   threshold,
		SeedAttempt: seedAttempt,
	}
}

// unassignedOf filters candidates not yet placed, preserving input order
func unassignedOf(candidates []Candidate, assigned map[uint]bool) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !assigned[c.ParticipantID] {
			out = append(out, c)
		}
	}
	return out
}

// removeAll returns pool minus the given members, preserving order
func removeAll(pool []Candidate, members []Candidate) []Candidate {
	drop := make(map[uint]bool, len(members))
	for _, m := range members {
		drop[m.ParticipantID] = true
	}
	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if !drop[c.ParticipantID] {
			out = append(out, c)
		}
	}
	return out
}
