package matching

import "math"

// Component weights for the final pair score. Cosine similarity dominates;
// lifestyle and comfort act as bonuses on top.
const (
	cosineWeight    = 0.7
	lifestyleWeight = 0.15
	comfortWeight   = 0.15
)

// TraitVector is the 4-dimensional raw similarity vector (each axis in [-10,10])
type TraitVector struct {
	Energy    float64 `json:"energy"`
	Openness  float64 `json:"openness"`
	Structure float64 `json:"structure"`
	Affect    float64 `json:"affect"`
}

// Candidate is one eligible participant as seen by the formation algorithm
type Candidate struct {
	ParticipantID  uint        `json:"participant_id"`
	RegistrationID uint        `json:"registration_id"`
	DisplayName    string      `json:"display_name"`
	Raw            TraitVector `json:"raw"`
	Lifestyle      float64     `json:"lifestyle"` // normalized [0,100]
	Comfort        float64     `json:"comfort"`   // normalized [0,100]
}

// PairScore is the compatibility score between exactly two participants,
// with its component breakdown. Total is bounded to [0,100].
type PairScore struct {
	Total          float64 `json:"total"`
	CosineScore    float64 `json:"cosine_score"`
	LifestyleBonus float64 `json:"lifestyle_bonus"`
	ComfortBonus   float64 `json:"comfort_bonus"`
}

// CalculatePairScore computes the compatibility score between two candidates.
// Pure and deterministic; used both for bulk precomputation before a run and
// for single-pair recomputation during manual overrides.
func CalculatePairScore(a, b Candidate) PairScore {
	cosine := cosineSimilarity(a.Raw, b.Raw)
	cosineScore := (cosine + 1) / 2 * 100

	lifestyleBonus := math.Max(0, 20-math.Abs(a.Lifestyle-b.Lifestyle))
	comfortBonus := 0.2 * math.Min(a.Comfort, b.Comfort)

	total := cosineWeight*cosineScore + lifestyleWeight*lifestyleBonus + comfortWeight*comfortBonus

	return PairScore{
		Total:          round2(total),
		CosineScore:    round2(cosineScore),
		LifestyleBonus: round2(lifestyleBonus),
		ComfortBonus:   round2(comfortBonus),
	}
}

// cosineSimilarity returns the cosine of the angle between two trait vectors
// in [-1,1]. A zero-magnitude vector yields 0.
func cosineSimilarity(a, b TraitVector) float64 {
	dot := a.Energy*b.Energy + a.Openness*b.Openness + a.Structure*b.Structure + a.Affect*b.Affect
	magA := math.Sqrt(a.Energy*a.Energy + a.Openness*a.Openness + a.Structure*a.Structure + a.Affect*a.Affect)
	magB := math.Sqrt(b.Energy*b.Energy + b.Openness*b.Openness + b.Structure*b.Structure + b.Affect*b.Affect)

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (magA * magB)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// pairKey identifies an unordered participant pair
type pairKey struct {
	lo, hi uint
}

func newPairKey(a, b uint) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// ScoreIndex is a precomputed lookup of all pairwise scores for one run
type ScoreIndex map[pairKey]PairScore

// BuildScoreIndex computes scores for every unordered candidate pair.
// O(N^2) and entirely in memory; N stays in the tens-to-low-hundreds per event.
func BuildScoreIndex(candidates []Candidate) ScoreIndex {
	index := make(ScoreIndex, len(candidates)*(len(candidates)-1)/2)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			key := newPairKey(candidates[i].ParticipantID, candidates[j].ParticipantID)
			index[key] = CalculatePairScore(candidates[i], candidates[j])
		}
	}
	return index
}

// Lookup returns the score for an unordered pair
func (idx ScoreIndex) Lookup(a, b uint) (PairScore, bool) {
	score, ok := idx[newPairKey(a, b)]
	return score, ok
}
