package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionType labels a follow-up interaction. The set is open; these are the
// values the clinic UI offers.
type ActionType string

const (
	ActionCall         ActionType = "call"
	ActionEmail        ActionType = "email"
	ActionSMS          ActionType = "sms"
	ActionMeeting      ActionType = "meeting"
	ActionPaymentPlan  ActionType = "payment_plan"
	ActionLegal        ActionType = "legal_action"
	ActionNote         ActionType = "note"
	ActionSystemNotice ActionType = "system_notice"
)

// DelinquencyAction is an append-only follow-up record against a case
type DelinquencyAction struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	CaseID           uuid.UUID  `json:"case_id" db:"case_id"`
	ActorID          string     `json:"actor_id" db:"actor_id"`
	ActionType       ActionType `json:"action_type" db:"action_type"`
	Description      string     `json:"description" db:"description"`
	Outcome          *string    `json:"outcome,omitempty" db:"outcome"`
	ContactMethod    *string    `json:"contact_method,omitempty" db:"contact_method"`
	DurationMinutes  *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	NextSteps        *string    `json:"next_steps,omitempty" db:"next_steps"`
	FollowUpRequired bool       `json:"follow_up_required" db:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty" db:"follow_up_date"`
	FollowUpNotes    *string    `json:"follow_up_notes,omitempty" db:"follow_up_notes"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// RecordActionRequest is the payload accepted by the action log
type RecordActionRequest struct {
	ActionType       string     `json:"action_type" validate:"required,max=50"`
	Description      string     `json:"description" validate:"required"`
	Outcome          *string    `json:"outcome,omitempty"`
	ContactMethod    *string    `json:"contact_method,omitempty" validate:"omitempty,max=50"`
	DurationMinutes  *int       `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	NextSteps        *string    `json:"next_steps,omitempty"`
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty" validate:"required_if=FollowUpRequired true"`
	FollowUpNotes    *string    `json:"follow_up_notes,omitempty"`
}

// Patient is the read-only patient record owned by the patients module
type Patient struct {
	ID         string  `json:"id" db:"id"`
	FirstName  string  `json:"first_name" db:"first_name"`
	LastName   string  `json:"last_name" db:"last_name"`
	FileNumber string  `json:"file_number" db:"file_number"`
	Email      *string `json:"email,omitempty" db:"email"`
	Phone      *string `json:"phone,omitempty" db:"phone"`
}

func (p *Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
