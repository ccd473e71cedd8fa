package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// OverrideService applies administrator-driven mutations to persisted groups:
// assign, move, remove, create-group and bulk-assign. Every operation runs as
// a single transaction covering the membership change, all sibling score-map
// updates, the statistics recompute and empty-group deletion, so no partial
// state is ever visible to the next read.
type OverrideService struct {
	db          *gorm.DB
	eligibility *EligibilityService
}

// NewOverrideService creates a new override service
func NewOverrideService(db *gorm.DB, eligibility *EligibilityService) *OverrideService {
	return &OverrideService{db: db, eligibility: eligibility}
}

// Assign places an eligible, not-yet-assigned participant into the group with
// the given sequence number, creating the group on first reference. Pairwise
// scores against every existing member are computed from the stored trait
// snapshots and written in both directions.
func (s *OverrideService) Assign(eventID, participantID uint, groupNumber int, assignedBy, note string) (*database.GroupMember, error) {
	eligible, err := s.findEligible(eventID, participantID)
	if err != nil {
		return nil, err
	}

	settings, err := database.GetOrCreateMatchingSettings(s.db)
	if err != nil {
		return nil, err
	}

	var created *database.GroupMember
	err = s.db.Transaction(func(tx *gorm.DB) error {
		assigned, err := assignedParticipantsTx(tx, eventID)
		if err != nil {
			return err
		}
		if assigned[participantID] {
			return matching.NewConflict("participant_already_assigned",
				fmt.Sprintf("Participant %d is already assigned to a group for event %d", participantID, eventID))
		}

		group, err := findOrCreateGroupTx(tx, eventID, groupNumber, assignedBy)
		if err != nil {
			return err
		}

		member, err := addMemberTx(tx, group, eligible, settings.MaxGroupSize, assignedBy, note, nil)
		if err != nil {
			return err
		}
		created = member

		return recomputeGroupTx(tx, group.ID, assignedBy)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Move transfers a participant between two groups of the same event,
// rescoring against the destination members, stripping the source siblings'
// score maps and deleting the source group if it becomes empty.
func (s *OverrideService) Move(participantID, fromGroupID, toGroupID uint, movedBy string) error {
	if fromGroupID == toGroupID {
		return matching.NewInvalid("same_group", "Source and destination group are the same")
	}

	settings, err := database.GetOrCreateMatchingSettings(s.db)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		source, err := loadGroupTx(tx, fromGroupID)
		if err != nil {
			return err
		}
		dest, err := loadGroupTx(tx, toGroupID)
		if err != nil {
			return err
		}
		if source.EventID != dest.EventID {
			return matching.NewInvalid("different_events", "Groups belong to different events")
		}

		var member database.GroupMember
		err = tx.Where("group_id = ? AND participant_id = ?", fromGroupID, participantID).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return matching.NewNotFound("membership_not_found",
					fmt.Sprintf("Participant %d is not a member of group %d", participantID, fromGroupID))
			}
			return err
		}

		var destCount int64
		if err := tx.Model(&database.GroupMember{}).Where("group_id = ?", toGroupID).Count(&destCount).Error; err != nil {
			return err
		}
		if int(destCount) >= settings.MaxGroupSize {
			return matching.NewInvalid("group_full",
				fmt.Sprintf("Group %d is already full (max %d members)", dest.GroupNumber, settings.MaxGroupSize))
		}

		var destMembers []database.GroupMember
		if err := tx.Where("group_id = ?", toGroupID).Find(&destMembers).Error; err != nil {
			return err
		}

		// Rescore against the destination from the frozen snapshots
		mover := candidateFromSnapshot(member.ParticipantID, member.Snapshot)
		scores := make(database.ScoreMap)
		for i := range destMembers {
			sibling := &destMembers[i]
			pair := matching.CalculatePairScore(mover, candidateFromSnapshot(sibling.ParticipantID, sibling.Snapshot))
			scores.Set(sibling.ParticipantID, pair.Total)
			sibling.PairScores.Set(member.ParticipantID, pair.Total)
			if err := tx.Model(sibling).Update("pair_scores", sibling.PairScores).Error; err != nil {
				return err
			}
		}

		if err := stripFromSiblingsTx(tx, fromGroupID, member.ParticipantID); err != nil {
			return err
		}

		previous := fromGroupID
		updates := map[string]interface{}{
			"group_id":          toGroupID,
			"pair_scores":       scores,
			"assigned_by":       movedBy,
			"previous_group_id": &previous,
		}
		if err := tx.Model(&member).Updates(updates).Error; err != nil {
			return err
		}

		if err := deleteGroupIfEmptyOrRecomputeTx(tx, fromGroupID, movedBy); err != nil {
			return err
		}
		return recomputeGroupTx(tx, toGroupID, movedBy)
	})
}

// Remove takes a participant out of a group, strips the remaining members'
// score maps and deletes the group if it becomes empty
func (s *OverrideService) Remove(participantID, groupID uint, removedBy string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadGroupTx(tx, groupID); err != nil {
			return err
		}

		var member database.GroupMember
		err := tx.Where("group_id = ? AND participant_id = ?", groupID, participantID).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return matching.NewNotFound("membership_not_found",
					fmt.Sprintf("Participant %d is not a member of group %d", participantID, groupID))
			}
			return err
		}

		if err := tx.Delete(&member).Error; err != nil {
			return err
		}
		if err := stripFromSiblingsTx(tx, groupID, participantID); err != nil {
			return err
		}

		return deleteGroupIfEmptyOrRecomputeTx(tx, groupID, removedBy)
	})
}

// CreateManualGroup creates an empty group with the given sequence number,
// flagged as manually created. Duplicate numbers within the event are rejected.
func (s *OverrideService) CreateManualGroup(eventID uint, groupNumber int, tableLabel, createdBy string) (*database.MatchingGroup, error) {
	if groupNumber < 1 {
		return nil, matching.NewInvalid("invalid_group_number", "Group number must be positive")
	}

	var event database.Event
	if err := s.db.First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matching.NewNotFound("event_not_found", fmt.Sprintf("Event %d not found", eventID))
		}
		return nil, err
	}

	group := &database.MatchingGroup{
		EventID:         eventID,
		GroupNumber:     groupNumber,
		Status:          database.GroupStatusActive,
		TableLabel:      tableLabel,
		ManuallyCreated: true,
		LastModifiedBy:  createdBy,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.MatchingGroup{}).
			Where("event_id = ? AND group_number = ?", eventID, groupNumber).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return matching.NewConflict("duplicate_group_number",
				fmt.Sprintf("Group %d already exists for event %d", groupNumber, eventID))
		}
		return tx.Create(group).Error
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// BulkAssignFailure records why one participant of a batch could not be assigned
type BulkAssignFailure struct {
	ParticipantID uint   `json:"participant_id"`
	Reason        string `json:"reason"`
}

// BulkAssignResult collects the outcome of a bulk assignment
type BulkAssignResult struct {
	Assigned []uint              `json:"assigned"`
	Failures []BulkAssignFailure `json:"failures"`
}

// BulkAssign applies Assign to each participant in order. One participant's
// failure is recorded and does not abort the batch.
func (s *OverrideService) BulkAssign(eventID uint, participantIDs []uint, groupNumber int, assignedBy, note string) *BulkAssignResult {
	result := &BulkAssignResult{
		Assigned: make([]uint, 0, len(participantIDs)),
		Failures: make([]BulkAssignFailure, 0),
	}

	for _, participantID := range participantIDs {
		if _, err := s.Assign(eventID, participantID, groupNumber, assignedBy, note); err != nil {
			result.Failures = append(result.Failures, BulkAssignFailure{
				ParticipantID: participantID,
				Reason:        err.Error(),
			})
			continue
		}
		result.Assigned = append(result.Assigned, participantID)
	}

	return result
}

// findEligible returns the eligible-participant record for one participant
func (s *OverrideService) findEligible(eventID, participantID uint) (*EligibleParticipant, error) {
	eligible, err := s.eligibility.GetEligible(eventID)
	if err != nil {
		return nil, err
	}
	for i := range eligible {
		if eligible[i].ParticipantID == participantID {
			return &eligible[i], nil
		}
	}
	return nil, matching.NewInvalid("participant_not_eligible",
		fmt.Sprintf("Participant %d is not eligible for event %d", participantID, eventID))
}

// addMemberTx inserts a membership, scoring against every existing member and
// updating both directions of the score maps. Capacity is validated here.
func addMemberTx(tx *gorm.DB, group *database.MatchingGroup, eligible *EligibleParticipant, maxSize int, assignedBy, note string, previousGroupID *uint) (*database.GroupMember, error) {
	var siblings []database.GroupMember
	if err := tx.Where("group_id = ?", group.ID).Find(&siblings).Error; err != nil {
		return nil, err
	}
	if len(siblings) >= maxSize {
		return nil, matching.NewInvalid("group_full",
			fmt.Sprintf("Group %d is already full (max %d members)", group.GroupNumber, maxSize))
	}

	candidate := eligible.Candidate()
	scores := make(database.ScoreMap)
	for i := range siblings {
		sibling := &siblings[i]
		pair := matching.CalculatePairScore(candidate, candidateFromSnapshot(sibling.ParticipantID, sibling.Snapshot))
		scores.Set(sibling.ParticipantID, pair.Total)
		sibling.PairScores.Set(candidate.ParticipantID, pair.Total)
		if err := tx.Model(sibling).Update("pair_scores", sibling.PairScores).Error; err != nil {
			return nil, err
		}
	}

	member := &database.GroupMember{
		GroupID:         group.ID,
		ParticipantID:   eligible.ParticipantID,
		Snapshot:        snapshotFromProfile(eligible.Profile),
		PairScores:      scores,
		AssignedBy:      assignedBy,
		Note:            note,
		PreviousGroupID: previousGroupID,
	}
	if err := tx.Create(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

// loadGroupTx fetches a group or returns a typed not-found error
func loadGroupTx(tx *gorm.DB, groupID uint) (*database.MatchingGroup, error) {
	var group database.MatchingGroup
	if err := tx.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matching.NewNotFound("group_not_found", fmt.Sprintf("Group %d not found", groupID))
		}
		return nil, err
	}
	return &group, nil
}

// findOrCreateGroupTx resolves an event's group by sequence number, creating
// it on first reference
func findOrCreateGroupTx(tx *gorm.DB, eventID uint, groupNumber int, createdBy string) (*database.MatchingGroup, error) {
	if groupNumber < 1 {
		return nil, matching.NewInvalid("invalid_group_number", "Group number must be positive")
	}

	var group database.MatchingGroup
	err := tx.Where("event_id = ? AND group_number = ?", eventID, groupNumber).First(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	group = database.MatchingGroup{
		EventID:         eventID,
		GroupNumber:     groupNumber,
		Status:          database.GroupStatusActive,
		ManuallyCreated: true,
		LastModifiedBy:  createdBy,
	}
	if err := tx.Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// stripFromSiblingsTx removes the participant's entry from every remaining
// member's score map in the group
func stripFromSiblingsTx(tx *gorm.DB, groupID, participantID uint) error {
	var siblings []database.GroupMember
	if err := tx.Where("group_id = ? AND participant_id <> ?", groupID, participantID).Find(&siblings).Error; err != nil {
		return err
	}
	for i := range siblings {
		sibling := &siblings[i]
		if _, ok := sibling.PairScores.Get(participantID); !ok {
			continue
		}
		sibling.PairScores.Remove(participantID)
		if err := tx.Model(sibling).Update("pair_scores", sibling.PairScores).Error; err != nil {
			return err
		}
	}
	return nil
}

// deleteGroupIfEmptyOrRecomputeTx deletes a group that lost its last member,
// otherwise refreshes its statistics
func deleteGroupIfEmptyOrRecomputeTx(tx *gorm.DB, groupID uint, modifiedBy string) error {
	var count int64
	if err := tx.Model(&database.GroupMember{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return tx.Delete(&database.MatchingGroup{}, groupID).Error
	}
	return recomputeGroupTx(tx, groupID, modifiedBy)
}

// assignedParticipantsTx returns the participants already in an active group
// for the event, read inside the caller's transaction
func assignedParticipantsTx(tx *gorm.DB, eventID uint) (map[uint]bool, error) {
	var ids []uint
	err := tx.Model(&database.GroupMember{}).
		Joins("JOIN matching_groups ON matching_groups.id = group_members.group_id").
		Where("matching_groups.event_id = ? AND matching_groups.status = ?", eventID, database.GroupStatusActive).
		Pluck("group_members.participant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	assigned := make(map[uint]bool, len(ids))
	for _, id := range ids {
		assigned[id] = true
	}
	return assigned, nil
}

// candidateFromSnapshot rebuilds a scoring candidate from a frozen trait
// snapshot so manual edits score against assignment-time values
func candidateFromSnapshot(participantID uint, snap database.TraitSnapshot) matching.Candidate {
	return matching.Candidate{
		ParticipantID: participantID,
		Raw: matching.TraitVector{
			Energy:    snap.RawEnergy,
			Openness:  snap.RawOpenness,
			Structure: snap.RawStructure,
			Affect:    snap.RawAffect,
		},
		Lifestyle: snap.Lifestyle,
		Comfort:   snap.Comfort,
	}
}
