package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// EligibleParticipant is one participant who may be matched for an event:
// paid registration plus a completed personality profile
type EligibleParticipant struct {
	ParticipantID  uint                        `json:"participant_id"`
	RegistrationID uint                        `json:"registration_id"`
	DisplayName    string                      `json:"display_name"`
	Email          string                      `json:"email"`
	Profile        database.PersonalityProfile `json:"profile"`
}

// Candidate converts the participant into the formation algorithm's input shape
func (e EligibleParticipant) Candidate() matching.Candidate {
	return matching.Candidate{
		ParticipantID:  e.ParticipantID,
		RegistrationID: e.RegistrationID,
		DisplayName:    e.DisplayName,
		Raw: matching.TraitVector{
			Energy:    e.Profile.RawEnergy,
			Openness:  e.Profile.RawOpenness,
			Structure: e.Profile.RawStructure,
			Affect:    e.Profile.RawAffect,
		},
		Lifestyle: e.Profile.LifestyleScore,
		Comfort:   e.Profile.ComfortScore,
	}
}

// EligibilityService selects the candidate population for an event. Read-only.
type EligibilityService struct {
	db *gorm.DB
}

// NewEligibilityService creates a new eligibility service
func NewEligibilityService(db *gorm.DB) *EligibilityService {
	return &EligibilityService{db: db}
}

// GetEligible returns every participant with a confirmed paid registration for
// the event and a completed personality profile, in registration order
func (s *EligibilityService) GetEligible(eventID uint) ([]EligibleParticipant, error) {
	var event database.Event
	if err := s.db.First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matching.NewNotFound("event_not_found", fmt.Sprintf("Event %d not found", eventID))
		}
		return nil, err
	}

	var registrations []database.Registration
	err := s.db.Where("event_id = ? AND payment_status = ?", eventID, database.PaymentStatusPaid).
		Preload("Participant").
		Order("id ASC").
		Find(&registrations).Error
	if err != nil {
		return nil, err
	}
	if len(registrations) == 0 {
		return []EligibleParticipant{}, nil
	}

	participantIDs := make([]uint, 0, len(registrations))
	for _, r := range registrations {
		participantIDs = append(participantIDs, r.ParticipantID)
	}

	var profiles []database.PersonalityProfile
	err = s.db.Where("participant_id IN ? AND completed_at IS NOT NULL", participantIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	profileByParticipant := make(map[uint]database.PersonalityProfile, len(profiles))
	for _, p := range profiles {
		profileByParticipant[p.ParticipantID] = p
	}

	eligible := make([]EligibleParticipant, 0, len(registrations))
	for _, r := range registrations {
		profile, ok := profileByParticipant[r.ParticipantID]
		if !ok {
			continue // registered and paid, but assessment not completed
		}
		eligible = append(eligible, EligibleParticipant{
			ParticipantID:  r.ParticipantID,
			RegistrationID: r.ID,
			DisplayName:    r.Participant.DisplayName,
			Email:          r.Participant.Email,
			Profile:        profile,
		})
	}

	return eligible, nil
}

// GetUnassigned returns the eligible participants not yet present in any
// active group for the event. Drives the manual-assignment operations.
func (s *EligibilityService) GetUnassigned(eventID uint) ([]EligibleParticipant, error) {
	eligible, err := s.GetEligible(eventID)
	if err != nil {
		return nil, err
	}

	assigned, err := s.GetAssignedParticipantIDs(eventID)
	if err != nil {
		return nil, err
	}

	unassigned := make([]EligibleParticipant, 0, len(eligible))
	for _, e := range eligible {
		if !assigned[e.ParticipantID] {
			unassigned = append(unassigned, e)
		}
	}
	return unassigned, nil
}

// GetAssignedParticipantIDs returns the set of participants already in an
// active group for the event
func (s *EligibilityService) GetAssignedParticipantIDs(eventID uint) (map[uint]bool, error) {
	var ids []uint
	err := s.db.Model(&database.GroupMember{}).
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
