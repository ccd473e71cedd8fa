package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// StatisticsService recomputes one group's derived statistics after manual
// mutation of its membership
type StatisticsService struct {
	db *gorm.DB
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

// RecomputeGroup reloads the group's members, flattens their stored pairwise
// scores, recomputes size/average/minimum and stamps the modification audit
// fields. Must run after every mutation affecting group membership.
func (s *StatisticsService) RecomputeGroup(groupID uint, modifiedBy string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return recomputeGroupTx(tx, groupID, modifiedBy)
	})
}

// recomputeGroupTx is the transactional body of RecomputeGroup; override
// operations call it inside their own transaction so membership change and
// statistics refresh commit atomically
func recomputeGroupTx(tx *gorm.DB, groupID uint, modifiedBy string) error {
	var members []database.GroupMember
	if err := tx.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("cannot recompute statistics for empty group %d", groupID)
	}

	memberScores := make(map[uint]map[uint]float64, len(members))
	for _, m := range members {
		row := make(map[uint]float64, len(m.PairScores))
		for _, otherID := range m.PairScores.ParticipantIDs() {
			if score, ok := m.PairScores.Get(otherID); ok {
				row[otherID] = score
			}
		}
		memberScores[m.ParticipantID] = row
	}

	scores := matching.FlattenScores(memberScores)
	avg := 0.0
	min := 0.0
	for i, score := range scores {
		avg += score
		if i == 0 || score < min {
			min = score
		}
	}
	if len(scores) > 0 {
		avg /= float64(len(scores))
	}

	return tx.Model(&database.MatchingGroup{}).
		Where("id = ?", groupID).
		Updates(map[string]interface{}{
			"size":              len(members),
			"avg_score":         roundScore(avg),
			"min_score":         min,
			"manually_modified": true,
			"last_modified_by":  modifiedBy,
		}).Error
}

func roundScore(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
