package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/collections-engine/pkg/utils"
)

// ObligationRef identifies one obligation in one ledger
type ObligationRef struct {
	Source SourceType `json:"source"`
	ID     string     `json:"id"`
}

func (r ObligationRef) String() string {
	return string(r.Source) + ":" + r.ID
}

// Obligation is the uniform view the case builder needs over either ledger
type Obligation interface {
	Ref() ObligationRef
	Debtor() string
	FaceValue() decimal.Decimal
	Outstanding() decimal.Decimal
	Due() time.Time
	CurrencyCode() string
	Summary() (title, description string)
	Details() CaseDetails
}

// FinancingPayment is one scheduled installment of a financing plan
type FinancingPayment struct {
	ID                string          `db:"id"`
	ClinicID          string          `db:"clinic_id"`
	PatientID         string          `db:"patient_id"`
	PlanID            string          `db:"plan_id"`
	PlanName          string          `db:"plan_name"`
	InstallmentNumber int             `db:"installment_number"`
	ScheduledAmount   decimal.Decimal `db:"scheduled_amount"`
	PaidAmount        decimal.Decimal `db:"paid_amount"`
	DueDate           time.Time       `db:"due_date"`
	Currency          string          `db:"currency"`
}

func (p *FinancingPayment) Ref() ObligationRef {
	return ObligationRef{Source: SourceFinancing, ID: p.ID}
}

func (p *FinancingPayment) Debtor() string { return p.PatientID }
func (p *FinancingPayment) FaceValue() decimal.Decimal { return p.ScheduledAmount }
func (p *FinancingPayment) Due() time.Time { return p.DueDate }
func (p *FinancingPayment) CurrencyCode() string { return p.Currency }
func (p *FinancingPayment) Outstanding() decimal.Decimal { return outstanding(p.ScheduledAmount, p.PaidAmount) }

func (p *FinancingPayment) Summary() (string, string) {
	title := fmt.Sprintf("Overdue installment #%d", p.InstallmentNumber)
	if p.PlanName != "" {
		title += " - " + p.PlanName
	}
	description := fmt.Sprintf("Installment %d of financing plan %s was due on %s",
		p.InstallmentNumber, p.PlanID, p.DueDate.Format("2006-01-02"))
	return title, description
}

func (p *FinancingPayment) Details() CaseDetails {
	return CaseDetails{Financing: &FinancingDetails{
		PlanID:            p.PlanID,
		PlanName:          p.PlanName,
		InstallmentNumber: p.InstallmentNumber,
	}}
}

// Invoice is a standalone invoice with an unpaid balance
type Invoice struct {
	ID         string          `db:"id"`
	ClinicID   string          `db:"clinic_id"`
	PatientID  string          `db:"patient_id"`
	Number     string          `db:"invoice_number"`
	Total      decimal.Decimal `db:"total"`
	PaidAmount decimal.Decimal `db:"paid_amount"`
	DueDate    time.Time       `db:"due_date"`
	Status     string          `db:"status"`
	Currency   string          `db:"currency"`
}

func (i *Invoice) Ref() ObligationRef {
	return ObligationRef{Source: SourceInvoice, ID: i.ID}
}

func (i *Invoice) Debtor() string { return i.PatientID }
func (i *Invoice) FaceValue() decimal.Decimal { return i.Total }
func (i *Invoice) Due() time.Time { return i.DueDate }
func (i *Invoice) CurrencyCode() string { return i.Currency }
func (i *Invoice) Outstanding() decimal.Decimal { return outstanding(i.Total, i.PaidAmount) }

func (i *Invoice) Summary() (string, string) {
	number := i.Number
	if number == "" {
		number = i.ID
	}
	return "Overdue invoice " + number,
		fmt.Sprintf("Invoice %s has an unpaid balance since %s", number, i.DueDate.Format("2006-01-02"))
}

func (i *Invoice) Details() CaseDetails {
	return CaseDetails{Invoice: &InvoiceDetails{
		InvoiceNumber: i.Number,
		InvoiceStatus: i.Status,
	}}
}

func outstanding(face, paid decimal.Decimal) decimal.Decimal {
	return utils.NonNegative(face.Sub(paid))
}
