package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/collections-engine/pkg/errors"
	"github.com/segyhp/collections-engine/pkg/utils"
)

// SystemActor is recorded as the actor of automated transitions and actions
const SystemActor = "system"

// DelinquencyCase tracks one overdue obligation through collection
type DelinquencyCase struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ClinicID           string     `json:"clinic_id" db:"clinic_id"`
	Source             SourceType `json:"source" db:"source"`
	FinancingPaymentID *string    `json:"financing_payment_id,omitempty" db:"financing_payment_id"`
	InvoiceID          *string    `json:"invoice_id,omitempty" db:"invoice_id"`
	PatientID          string     `json:"patient_id" db:"patient_id"`

	Type        string      `json:"type" db:"type"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Details     CaseDetails `json:"details" db:"details"`

	Currency       string          `json:"currency" db:"currency"`
	OriginalAmount decimal.Decimal `json:"original_amount" db:"original_amount"`
	OverdueAmount  decimal.Decimal `json:"overdue_amount" db:"overdue_amount"`
	LateFeeAmount  decimal.Decimal `json:"late_fee_amount" db:"late_fee_amount"`
	TotalOwed      decimal.Decimal `json:"total_owed" db:"total_owed"`

	OriginalDueDate time.Time   `json:"original_due_date" db:"original_due_date"`
	DaysOverdue     int         `json:"days_overdue" db:"days_overdue"`
	NoticeStage     NoticeStage `json:"notice_stage" db:"-"`

	Status   CaseStatus `json:"status" db:"status"`
	Priority Priority   `json:"priority" db:"priority"`

	AssignedTo     *string    `json:"assigned_to,omitempty" db:"assigned_to"`
	NextActionDate *time.Time `json:"next_action_date,omitempty" db:"next_action_date"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty" db:"closed_at"`

	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Patient *Patient             `json:"patient,omitempty" db:"-"`
	Actions []*DelinquencyAction `json:"actions,omitempty" db:"-"`
	History []*StatusChange      `json:"history,omitempty" db:"-"`
}

// CaseDetails carries the source-specific payload of a case. Exactly one
// member is set, matching the case source.
type CaseDetails struct {
	Financing *FinancingDetails `json:"financing,omitempty"`
	Invoice   *InvoiceDetails   `json:"invoice,omitempty"`
}

type FinancingDetails struct {
	PlanID            string `json:"plan_id"`
	PlanName          string `json:"plan_name,omitempty"`
	InstallmentNumber int    `json:"installment_number"`
}

type InvoiceDetails struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceStatus string `json:"invoice_status,omitempty"`
}

// Value implements driver.Valuer for the jsonb column
func (d CaseDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for the jsonb column
func (d *CaseDetails) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = CaseDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into CaseDetails", value)
	}
}

// StatusChange is one immutable entry of the case status history
type StatusChange struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CaseID     uuid.UUID  `json:"case_id" db:"case_id"`
	FromStatus CaseStatus `json:"from_status" db:"from_status"`
	ToStatus   CaseStatus `json:"to_status" db:"to_status"`
	ActorID    string     `json:"actor_id" db:"actor_id"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	ChangedAt  time.Time  `json:"changed_at" db:"changed_at"`
}

// CaseFilter narrows case listings at the storage level. Priority is derived,
// so it is filtered after the refresh instead.
type CaseFilter struct {
	ClinicID string
	Search   string
	Status   *CaseStatus
}

// NewCaseFromObligation opens a Pendiente case for an overdue obligation
func NewCaseFromObligation(clinicID string, o Obligation, settings Settings, now time.Time, loc *time.Location) *DelinquencyCase {
	ref := o.Ref()
	title, description := o.Summary()

	c := &DelinquencyCase{
		ID:              uuid.New(),
		ClinicID:        clinicID,
		Source:          ref.Source,
		PatientID:       o.Debtor(),
		Type:            string(ref.Source),
		Title:           title,
		Description:     description,
		Details:         o.Details(),
		Currency:        o.CurrencyCode(),
		OriginalAmount:  o.FaceValue(),
		OverdueAmount:   o.Outstanding(),
		OriginalDueDate: o.Due(),
		Status:          CaseStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.Currency == "" {
		c.Currency = settings.Currency
	}

	id := ref.ID
	switch ref.Source {
	case SourceFinancing:
		c.FinancingPaymentID = &id
	case SourceInvoice:
		c.InvoiceID = &id
	}

	c.Refresh(settings, now, loc)
	return c
}

// ObligationRef returns the obligation the case traces back to
func (c *DelinquencyCase) ObligationRef() ObligationRef {
	ref := ObligationRef{Source: c.Source}
	switch {
	case c.FinancingPaymentID != nil:
		ref.ID = *c.FinancingPaymentID
	case c.InvoiceID != nil:
		ref.ID = *c.InvoiceID
	}
	return ref
}

// IsOpen reports whether the case is still being worked
func (c *DelinquencyCase) IsOpen() bool {
	return !c.Status.IsTerminal()
}

// SameInstance reports whether o is the obligation instance this case was
// opened for. A rescheduled obligation carries a new due date and is a new instance.
func (c *DelinquencyCase) SameInstance(o Obligation) bool {
	return c.ObligationRef() == o.Ref() && utils.DaysBetween(c.OriginalDueDate, o.Due()) == 0
}

// agingReference is the instant days overdue is measured to; terminal cases stop aging
func (c *DelinquencyCase) agingReference(now time.Time) time.Time {
	if c.Status.IsTerminal() && c.ClosedAt != nil {
		return *c.ClosedAt
	}
	return now
}

// Refresh recomputes every derived field from the stored inputs
func (c *DelinquencyCase) Refresh(settings Settings, now time.Time, loc *time.Location) {
	c.DaysOverdue = utils.DaysOverdue(c.OriginalDueDate, c.agingReference(now), loc)
	c.NoticeStage = settings.NoticeStageFor(c.DaysOverdue)

	if c.IsOpen() {
		c.OverdueAmount = utils.NonNegative(c.OverdueAmount)
		c.LateFeeAmount = settings.LateFee(c.OverdueAmount, c.DaysOverdue)
		c.TotalOwed = c.OverdueAmount.Add(c.LateFeeAmount)
	}
	c.Priority = ClassifyPriority(c.DaysOverdue, c.TotalOwed, settings.HighValueThreshold)
}

// ApplyObligation updates the unpaid principal from the latest ledger state
func (c *DelinquencyCase) ApplyObligation(o Obligation) {
	c.OverdueAmount = o.Outstanding()
	c.OriginalAmount = o.FaceValue()
}

// Transition moves the case to a new status and returns the history entry.
// A request for the current status is a no-op and yields a nil entry.
func (c *DelinquencyCase) Transition(to CaseStatus, actorID, reason string, now time.Time) (*StatusChange, error) {
	if !to.IsValid() {
		return nil, customError.WrapValidation("status", fmt.Sprintf("unknown status %q", to))
	}
	if c.Status == to {
		return nil, nil
	}
	if !CanTransition(c.Status, to) {
		return nil, customError.WrapInvalidTransition(string(c.Status), string(to))
	}

	from := c.Status
	c.Status = to
	c.UpdatedAt = now

	switch to {
	case CaseStatusResolved:
		c.ResolvedAt = &now
		c.ClosedAt = &now
	case CaseStatusCancelled:
		c.ClosedAt = &now
	}

	return c.newChange(from, to, actorID, reason, now), nil
}

// Reopen returns a terminal case to Pendiente and clears its resolution
func (c *DelinquencyCase) Reopen(actorID, reason string, now time.Time) (*StatusChange, error) {
	if !c.Status.IsTerminal() {
		return nil, customError.WrapInvalidTransition(string(c.Status), string(CaseStatusPending))
	}

	from := c.Status
	c.Status = CaseStatusPending
	c.ResolvedAt = nil
	c.ClosedAt = nil
	c.UpdatedAt = now

	return c.newChange(from, CaseStatusPending, actorID, reason, now), nil
}

func (c *DelinquencyCase) newChange(from, to CaseStatus, actorID, reason string, now time.Time) *StatusChange {
	return &StatusChange{
		ID:         uuid.New(),
		CaseID:     c.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Reason:     reason,
		ChangedAt:  now,
	}
}
