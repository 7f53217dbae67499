package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/metrics"
)

// RecordAction appends a follow-up record to a case. It never changes the case
// status; a follow-up date, when required, becomes the case's next action.
func (s *CollectionsService) RecordAction(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req domain.RecordActionRequest) (*domain.DelinquencyAction, error) {
	req.ActionType = strings.TrimSpace(req.ActionType)
	req.Description = strings.TrimSpace(req.Description)

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}

	action := &domain.DelinquencyAction{
		ID:               uuid.New(),
		CaseID:           c.ID,
		ActorID:          actorID,
		ActionType:       domain.ActionType(req.ActionType),
		Description:      req.Description,
		Outcome:          trimmed(req.Outcome),
		ContactMethod:    trimmed(req.ContactMethod),
		DurationMinutes:  req.DurationMinutes,
		NextSteps:        trimmed(req.NextSteps),
		FollowUpRequired: req.FollowUpRequired,
		FollowUpNotes:    trimmed(req.FollowUpNotes),
		CreatedAt:        s.now(),
	}
	if req.FollowUpRequired {
		action.FollowUpDate = req.FollowUpDate
	}

	if err := s.ActionRepo.Create(ctx, action); err != nil {
		return nil, dbError(err)
	}

	metrics.RecordActionRecorded(string(action.ActionType))
	s.log.InfoContext(ctx, "action recorded",
		"clinic_id", clinicID,
		"case_id", c.ID,
		"action_type", action.ActionType,
		"follow_up", action.FollowUpRequired,
	)
	return action, nil
}

// ListActions returns the action log of a case, newest first
func (s *CollectionsService) ListActions(ctx context.Context, clinicID string, caseID uuid.UUID) ([]*domain.DelinquencyAction, error) {
	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}

	actions, err := s.ActionRepo.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, dbError(err)
	}
	if actions == nil {
		actions = []*domain.DelinquencyAction{}
	}
	return actions, nil
}

// trimmed drops blank optional strings
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
