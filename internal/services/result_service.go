package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// ResultService persists the outcome of matching runs: it replaces the result
// set for an event and appends immutable attempt history rows.
type ResultService struct {
	db *gorm.DB
}

// NewResultService creates a new result service
func NewResultService(db *gorm.DB) *ResultService {
	return &ResultService{db: db}
}

// ReplaceResults deletes every existing group for the event and recreates
// groups and members from the freshly computed result, in one transaction.
// Groups get sequence numbers 1..N in formation order; each member's score map
// is derived by filtering the group's pair-score list to entries touching that
// member. The profiles map supplies the trait snapshots frozen at assignment.
func (s *ResultService) ReplaceResults(eventID uint, result *matching.FormationResult, profiles map[uint]database.PersonalityProfile) ([]database.MatchingGroup, error) {
	var created []database.MatchingGroup

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Delete members first, then the groups they belong to
		var groupIDs []uint
		if err := tx.Model(&database.MatchingGroup{}).
			Where("event_id = ?", eventID).
			Pluck("id", &groupIDs).Error; err != nil {
			return err
		}
		if len(groupIDs) > 0 {
			if err := tx.Where("group_id IN ?", groupIDs).Delete(&database.GroupMember{}).Error; err != nil {
				return err
			}
			if err := tx.Where("event_id = ?", eventID).Delete(&database.MatchingGroup{}).Error; err != nil {
				return err
			}
		}

		for i, candidate := range result.Groups {
			group := database.MatchingGroup{
				EventID:       eventID,
				GroupNumber:   i + 1,
				Status:        database.GroupStatusActive,
				Size:          candidate.Size,
				AvgScore:      candidate.AvgScore,
				MinScore:      candidate.MinScore,
				ThresholdUsed: candidate.Threshold,
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}

			for _, member := range candidate.Members {
				scores := make(database.ScoreMap)
				for _, pair := range candidate.Pairs {
					switch member.ParticipantID {
					case pair.AID:
						scores.Set(pair.BID, pair.Score)
					case pair.BID:
						scores.Set(pair.AID, pair.Score)
					}
				}

				profile, ok := profiles[member.ParticipantID]
				if !ok {
					return fmt.Errorf("missing profile for participant %d", member.ParticipantID)
				}

				row := database.GroupMember{
					GroupID:       group.ID,
					ParticipantID: member.ParticipantID,
					Snapshot:      snapshotFromProfile(profile),
					PairScores:    scores,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}

			created = append(created, group)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RecordAttempt appends one immutable attempt row with a strictly increasing
// per-event sequence number. Every run is logged, including empty and failed
// ones.
func (s *ResultService) RecordAttempt(eventID uint, result *matching.FormationResult, summary matching.Summary, status database.AttemptStatus, triggeredBy string, elapsedSeconds float64) (*database.MatchingAttempt, error) {
	attempt := &database.MatchingAttempt{
		EventID:          eventID,
		Status:           status,
		TriggeredBy:      triggeredBy,
		ExecutionSeconds: elapsedSeconds,
	}

	if result != nil {
		attempt.TotalParticipants = result.TotalParticipants
		attempt.MatchedCount = result.MatchedCount()
		attempt.UnmatchedCount = len(result.Unmatched)
		attempt.GroupsFormed = len(result.Groups)
		attempt.AvgScore = summary.AvgScore
		attempt.MinThreshold = summary.MinThreshold
		attempt.MaxThreshold = summary.MaxThreshold
		attempt.Warnings = joinWarnings(result.Warnings)
		attempt.ResultPayload = attemptPayload(result)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		if err := tx.Model(&database.MatchingAttempt{}).
			Where("event_id = ?", eventID).
			Select("COALESCE(MAX(attempt_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}
		attempt.AttemptNumber = maxNumber + 1
		return tx.Create(attempt).Error
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// GetGroups returns the current groups for an event with their members and
// source participants, ordered by group number
func (s *ResultService) GetGroups(eventID uint) ([]database.MatchingGroup, error) {
	var groups []database.MatchingGroup
	err := s.db.Where("event_id = ? AND status = ?", eventID, database.GroupStatusActive).
		Preload("Members").
		Preload("Members.Participant").
		Order("group_number ASC").
		Find(&groups).Error
	return groups, err
}

// ParticipantGroupView is one participant's personalized view of their group
type ParticipantGroupView struct {
	Group   database.MatchingGroup `json:"group"`
	Members []database.GroupMember `json:"members"`
	Scores  database.ScoreMap      `json:"scores"` // this participant's scores against each groupmate
}

// GetParticipantGroup returns the active group a participant belongs to for
// the event, with the participant's own pairwise score view
func (s *ResultService) GetParticipantGroup(eventID, participantID uint) (*ParticipantGroupView, error) {
	var member database.GroupMember
	err := s.db.Joins("JOIN matching_groups ON matching_groups.id = group_members.group_id").
		Where("matching_groups.event_id = ? AND matching_groups.status = ? AND group_members.participant_id = ?",
			eventID, database.GroupStatusActive, participantID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matching.NewNotFound("participant_not_grouped",
				fmt.Sprintf("Participant %d has no group for event %d", participantID, eventID))
		}
		return nil, err
	}

	var group database.MatchingGroup
	if err := s.db.Preload("Members").Preload("Members.Participant").First(&group, member.GroupID).Error; err != nil {
		return nil, err
	}

	return &ParticipantGroupView{
		Group:   group,
		Members: group.Members,
		Scores:  member.PairScores,
	}, nil
}

// GetAttemptHistory returns the full attempt log for an event, newest first
func (s *ResultService) GetAttemptHistory(eventID uint) ([]database.MatchingAttempt, error) {
	var attempts []database.MatchingAttempt
	err := s.db.Where("event_id = ?", eventID).
		Order("attempt_number DESC").
		Find(&attempts).Error
	return attempts, err
}

// snapshotFromProfile freezes the profile's trait scores at assignment time
func snapshotFromProfile(p database.PersonalityProfile) database.TraitSnapshot {
	return database.TraitSnapshot{
		Energy:       p.EnergyScore,
		Openness:     p.OpennessScore,
		Structure:    p.StructureScore,
		Affect:       p.AffectScore,
		Comfort:      p.ComfortScore,
		Lifestyle:    p.LifestyleScore,
		RawEnergy:    p.RawEnergy,
		RawOpenness:  p.RawOpenness,
		RawStructure: p.RawStructure,
		RawAffect:    p.RawAffect,
	}
}

// attemptPayload serializes the full formation result for the attempt log
func attemptPayload(result *matching.FormationResult) database.JSONB {
	payload := make(database.JSONB)
	data, err := json.Marshal(result)
	if err != nil {
		return payload
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return database.JSONB{}
	}
	return payload
}

func joinWarnings(warnings []string) string {
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += "; "
		}
		out += w
	}
	return out
}
