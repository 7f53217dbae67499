package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/metrics"
	"github.com/segyhp/collections-engine/internal/notifier"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// StatusUpdate is a requested status change. Version, when set, must match the
// version the caller read.
type StatusUpdate struct {
	Status  string `json:"status" validate:"required"`
	Version *int   `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ReopenRequest returns a terminal case to Pendiente
type ReopenRequest struct {
	Version *int   `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// AssignmentUpdate sets or clears the staff member working a case
type AssignmentUpdate struct {
	AssignedTo *string `json:"assigned_to"`
	Version    *int    `json:"version,omitempty"`
}

// NextActionUpdate sets or clears the next scheduled follow-up of a case
type NextActionUpdate struct {
	Date    *time.Time `json:"date"`
	Version *int       `json:"version,omitempty"`
}

// UpdateCaseStatus applies a manual status transition
func (s *CollectionsService) UpdateCaseStatus(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req StatusUpdate) (*domain.DelinquencyCase, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	status, ok := domain.ParseCaseStatus(req.Status)
	if !ok {
		return nil, customError.WrapValidation("status", "unknown status "+req.Status)
	}

	return s.transitionCase(ctx, clinicID, caseID, actorID, status, strings.TrimSpace(req.Reason), req.Version)
}

// MarkViewed records that the patient acknowledged the notice
func (s *CollectionsService) MarkViewed(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	return s.transitionCase(ctx, clinicID, caseID, actorID, domain.CaseStatusViewed, "notice acknowledged", nil)
}

func (s *CollectionsService) transitionCase(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, to domain.CaseStatus, reason string, version *int) (*domain.DelinquencyCase, error) {
	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(c, version); err != nil {
		return nil, err
	}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expected := c.Version
	change, err := c.Transition(to, actorID, reason, now)
	if err != nil {
		return nil, err
	}
	c.Refresh(settings, now, s.opts.Location)
	if change == nil {
		return c, nil
	}

	if err := s.CaseRepo.Update(ctx, c, expected, change); err != nil {
		return nil, dbError(err)
	}

	metrics.RecordCaseStatusChange(string(change.FromStatus), string(change.ToStatus))
	s.log.InfoContext(ctx, "case status changed",
		"clinic_id", clinicID,
		"case_id", c.ID,
		"from", change.FromStatus,
		"to", change.ToStatus,
		"actor", actorID,
	)
	return c, nil
}

// ReopenCase returns a resolved or cancelled case to Pendiente
func (s *CollectionsService) ReopenCase(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req ReopenRequest) (*domain.DelinquencyCase, error) {
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
	if err := checkVersion(c, req.Version); err != nil {
		return nil, err
	}

	open, err := s.CaseRepo.CountOpenByObligation(ctx, c.ObligationRef(), c.ID)
	if err != nil {
		return nil, dbError(err)
	}
	if open > 0 {
		return nil, customError.WrapConflict("another open case already tracks this obligation")
	}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expected := c.Version
	change, err := c.Reopen(actorID, strings.TrimSpace(req.Reason), now)
	if err != nil {
		return nil, err
	}
	c.Refresh(settings, now, s.opts.Location)

	if err := s.CaseRepo.Update(ctx, c, expected, change); err != nil {
		return nil, dbError(err)
	}

	metrics.RecordCaseStatusChange(string(change.FromStatus), string(change.ToStatus))
	s.log.InfoContext(ctx, "case reopened", "clinic_id", clinicID, "case_id", c.ID, "actor", actorID)
	return c, nil
}

// AssignCase sets or clears the staff member responsible for a case
func (s *CollectionsService) AssignCase(ctx context.Context, clinicID string, caseID uuid.UUID, req AssignmentUpdate) (*domain.DelinquencyCase, error) {
	if req.AssignedTo != nil {
		assignee := strings.TrimSpace(*req.AssignedTo)
		if assignee == "" {
			req.AssignedTo = nil
		} else {
			req.AssignedTo = &assignee
		}
	}

	return s.editOpenCase(ctx, clinicID, caseID, req.Version, func(c *domain.DelinquencyCase) {
		c.AssignedTo = req.AssignedTo
	})
}

// ScheduleNextAction sets or clears the next follow-up date of a case
func (s *CollectionsService) ScheduleNextAction(ctx context.Context, clinicID string, caseID uuid.UUID, req NextActionUpdate) (*domain.DelinquencyCase, error) {
	return s.editOpenCase(ctx, clinicID, caseID, req.Version, func(c *domain.DelinquencyCase) {
		c.NextActionDate = req.Date
	})
}

// editOpenCase applies a non-lifecycle edit under the version guard
func (s *CollectionsService) editOpenCase(ctx context.Context, clinicID string, caseID uuid.UUID, version *int, edit func(*domain.DelinquencyCase)) (*domain.DelinquencyCase, error) {
	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(c, version); err != nil {
		return nil, err
	}
	if !c.IsOpen() {
		return nil, customError.WrapConflict("case " + c.ID.String() + " is closed")
	}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expected := c.Version
	edit(c)
	c.UpdatedAt = now
	c.Refresh(settings, now, s.opts.Location)

	if err := s.CaseRepo.Update(ctx, c, expected, nil); err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

// DispatchNotice sends the collection notice of an open case and marks it Enviado
func (s *CollectionsService) DispatchNotice(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsOpen() {
		return nil, customError.WrapInvalidTransition(string(c.Status), string(domain.CaseStatusSent))
	}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	c.Refresh(settings, s.now(), s.opts.Location)

	if err := s.sendNotice(ctx, c, settings, actorID); err != nil {
		return nil, err
	}
	return c, nil
}

// sendNotice delivers the notice, logs it as an action and advances a
// Pendiente case to Enviado. A failed delivery leaves the case untouched.
func (s *CollectionsService) sendNotice(ctx context.Context, c *domain.DelinquencyCase, settings domain.Settings, actorID string) error {
	patient, err := s.PatientRepo.GetByID(ctx, c.ClinicID, c.PatientID)
	if err != nil {
		return dbError(err)
	}

	msg := notifier.ComposeNotice(c, patient, settings)

	// 1. Deliver, or only record when the patient cannot be reached by email
	channel := notifier.ChannelLog
	if msg.ToEmail != "" {
		channel = s.notifier.Channel()
		if err := s.notifier.Send(ctx, msg); err != nil {
			metrics.RecordNotice(channel, "failed")
			s.log.WarnContext(ctx, "notice delivery failed", "clinic_id", c.ClinicID, "case_id", c.ID, "error", err)
			return customError.WrapNotifierError(channel, err)
		}
	} else {
		s.log.InfoContext(ctx, "notice recorded without delivery, patient has no email",
			"clinic_id", c.ClinicID, "case_id", c.ID, "subject", msg.Subject)
	}
	metrics.RecordNotice(channel, "sent")

	// 2. Log the notice in the case history
	now := s.now()
	action := &domain.DelinquencyAction{
		ID:          uuid.New(),
		CaseID:      c.ID,
		ActorID:     actorID,
		ActionType:  domain.ActionSystemNotice,
		Description: msg.Subject,
		CreatedAt:   now,
	}
	if channel == notifier.ChannelEmail {
		action.ActionType = domain.ActionEmail
		action.ContactMethod = stringPtr(msg.ToEmail)
		action.Outcome = stringPtr("sent")
	} else {
		action.Outcome = stringPtr("not delivered")
	}
	if err := s.ActionRepo.Create(ctx, action); err != nil {
		return dbError(err)
	}
	metrics.RecordActionRecorded(string(action.ActionType))
	c.Actions = append([]*domain.DelinquencyAction{action}, c.Actions...)

	// 3. Advance the lifecycle
	if c.Status != domain.CaseStatusPending {
		return nil
	}
	reason := "notice dispatched: " + string(c.NoticeStage)
	expected := c.Version
	change, err := c.Transition(domain.CaseStatusSent, actorID, reason, now)
	if err != nil {
		return err
	}
	err = s.CaseRepo.Update(ctx, c, expected, change)
	if errors.Is(err, customError.ErrConflict) {
		// the notice is out, so the status write must land on the current row
		s.log.InfoContext(ctx, "case changed while the notice was sent, reapplying",
			"clinic_id", c.ClinicID, "case_id", c.ID)
		return s.markNoticeSent(ctx, c, settings, actorID, reason, now)
	}
	if err != nil {
		return dbError(err)
	}
	metrics.RecordCaseStatusChange(string(change.FromStatus), string(change.ToStatus))

	return nil
}

// markNoticeSent reloads a case whose post-delivery update lost a version race
// and moves it to Enviado unless a concurrent writer already took it past
// Pendiente. c is replaced by the stored row.
func (s *CollectionsService) markNoticeSent(ctx context.Context, c *domain.DelinquencyCase, settings domain.Settings, actorID, reason string, now time.Time) error {
	current, err := s.loadCase(ctx, c.ClinicID, c.ID)
	if err != nil {
		return err
	}
	if len(current.Actions) == 0 {
		current.Actions = c.Actions
	}
	current.Refresh(settings, now, s.opts.Location)
	defer func() { *c = *current }()

	if current.Status != domain.CaseStatusPending {
		return nil
	}

	expected := current.Version
	change, err := current.Transition(domain.CaseStatusSent, actorID, reason, now)
	if err != nil {
		return err
	}
	if err := s.CaseRepo.Update(ctx, current, expected, change); err != nil {
		return dbError(err)
	}
	metrics.RecordCaseStatusChange(string(change.FromStatus), string(change.ToStatus))
	return nil
}

func checkVersion(c *domain.DelinquencyCase, version *int) error {
	if version != nil && *version != c.Version {
		return customError.WrapConflict("case " + c.ID.String() + " has changed since it was read, reload and retry")
	}
	return nil
}

func requireActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return customError.WrapValidation("actor_id", "acting user is required")
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
