package matching

import (
	"math"
	"testing"
)

func candidate(id uint, e, o, s, a, lifestyle, comfort float64) Candidate {
	return Candidate{
		ParticipantID: id,
		Raw:           TraitVector{Energy: e, Openness: o, Structure: s, Affect: a},
		Lifestyle:     lifestyle,
		Comfort:       comfort,
	}
}

func TestCalculatePairScore_IdenticalProfiles(t *testing.T) {
	a := candidate(1, 5, 5, 5, 5, 50, 50)
	b := candidate(2, 5, 5, 5, 5, 50, 50)

	score := CalculatePairScore(a, b)

	if score.CosineScore != 100 {
		t.Errorf("expected cosine score 100 for identical vectors, got %f", score.CosineScore)
	}
	if score.LifestyleBonus != 20 {
		t.Errorf("expected lifestyle bonus 20, got %f", score.LifestyleBonus)
	}
	if score.ComfortBonus != 10 {
		t.Errorf("expected comfort bonus 10, got %f", score.ComfortBonus)
	}
	// 0.7*100 + 0.15*20 + 0.15*10
	if score.Total != 74.5 {
		t.Errorf("expected total 74.5, got %f", score.Total)
	}
}

func TestCalculatePairScore_Bounds(t *testing.T) {
	cases := []struct {
		name string
		a, b Candidate
	}{
		{"identical", candidate(1, 5, 5, 5, 5, 50, 50), candidate(2, 5, 5, 5, 5, 50, 50)},
		{"opposite vectors", candidate(1, 10, 10, 10, 10, 0, 0), candidate(2, -10, -10, -10, -10, 100, 100)},
		{"max everything", candidate(1, 10, 10, 10, 10, 100, 100), candidate(2, 10, 10, 10, 10, 100, 100)},
		{"min everything", candidate(1, -10, -10, -10, -10, 0, 0), candidate(2, 10, -10, 10, -10, 0, 0)},
		{"mixed", candidate(1, 3, -7, 2, 9, 33, 81), candidate(2, -4, 6, 1, -2, 90, 12)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := CalculatePairScore(tc.a, tc.b)
			if score.Total < 0 || score.Total > 100 {
				t.Errorf("total %f out of [0,100]", score.Total)
			}
			if score.CosineScore < 0 || score.CosineScore > 100 {
				t.Errorf("cosine score %f out of [0,100]", score.CosineScore)
			}
			if score.LifestyleBonus < 0 || score.LifestyleBonus > 20 {
				t.Errorf("lifestyle bonus %f out of [0,20]", score.LifestyleBonus)
			}
			if score.ComfortBonus < 0 || score.ComfortBonus > 20 {
				t.Errorf("comfort bonus %f out of [0,20]", score.ComfortBonus)
			}
		})
	}
}

func TestCalculatePairScore_ZeroMagnitudeVector(t *testing.T) {
	a := candidate(1, 0, 0, 0, 0, 50, 50)
	b := candidate(2, 5, 5, 5, 5, 50, 50)

	score := CalculatePairScore(a, b)

	// Zero-magnitude vector yields similarity 0, rescaled to 50
	if score.CosineScore != 50 {
		t.Errorf("expected cosine score 50 for zero-magnitude vector, got %f", score.CosineScore)
	}
}

func TestCalculatePairScore_Symmetric(t *testing.T) {
	a := candidate(1, 3, -2, 7, 1, 40, 80)
	b := candidate(2, -1, 4, 2, -6, 70, 30)

	ab := CalculatePairScore(a, b)
	ba := CalculatePairScore(b, a)

	if ab.Total != ba.Total {
		t.Errorf("score not symmetric: %f vs %f", ab.Total, ba.Total)
	}
}

func TestCalculatePairScore_LifestyleGap(t *testing.T) {
	a := candidate(1, 5, 5, 5, 5, 0, 50)
	b := candidate(2, 5, 5, 5, 5, 100, 50)

	score := CalculatePairScore(a, b)

	// Gap of 100 wipes out the lifestyle bonus entirely
	if score.LifestyleBonus != 0 {
		t.Errorf("expected lifestyle bonus 0 for max gap, got %f", score.LifestyleBonus)
	}
}

func TestCalculatePairScore_RoundedToTwoDecimals(t *testing.T) {
	a := candidate(1, 3, 1, 4, 1, 33.33, 66.67)
	b := candidate(2, 2, 7, 1, 8, 71.42, 13.9)

	score := CalculatePairScore(a, b)

	rounded := math.Round(score.Total*100) / 100
	if score.Total != rounded {
		t.Errorf("total %v not rounded to 2 decimals", score.Total)
	}
}

func TestBuildScoreIndex(t *testing.T) {
	candidates := []Candidate{
		candidate(1, 5, 5, 5, 5, 50, 50),
		candidate(2, 5, 5, 5, 5, 50, 50),
		candidate(3, -5, -5, -5, -5, 10, 90),
	}

	index := BuildScoreIndex(candidates)

	if len(index) != 3 {
		t.Errorf("expected 3 pairs for 3 candidates, got %d", len(index))
	}

	// Unordered lookup works both ways
	s12, ok := index.Lookup(1, 2)
	if !ok {
		t.Fatal("missing pair (1,2)")
	}
	s21, ok := index.Lookup(2, 1)
	if !ok {
		t.Fatal("missing pair (2,1)")
	}
	if s12 != s21 {
		t.Errorf("lookup not symmetric: %v vs %v", s12, s21)
	}

	if _, ok := index.Lookup(1, 99); ok {
		t.Error("expected no score for unknown participant")
	}
}
