package domain

// CaseStatus is the position of a case in its handling workflow
type CaseStatus string

const (
	CaseStatusPending   CaseStatus = "Pendiente"
	CaseStatusSent      CaseStatus = "Enviado"
	CaseStatusViewed    CaseStatus = "Visto"
	CaseStatusResolved  CaseStatus = "Resuelto"
	CaseStatusCancelled CaseStatus = "Cancelado"
)

// allowedTransitions lists the forward moves of the lifecycle. Reopening a
// terminal case is a separate operation and not listed here.
var allowedTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusPending: {CaseStatusSent, CaseStatusResolved, CaseStatusCancelled},
	CaseStatusSent:    {CaseStatusViewed, CaseStatusResolved, CaseStatusCancelled},
	CaseStatusViewed:  {CaseStatusResolved, CaseStatusCancelled},
}

// ParseCaseStatus converts raw input into a known status
func ParseCaseStatus(s string) (CaseStatus, bool) {
	status := CaseStatus(s)
	return status, status.IsValid()
}

func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusPending, CaseStatusSent, CaseStatusViewed, CaseStatusResolved, CaseStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the case is retired
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusResolved || s == CaseStatusCancelled
}

// CanTransition reports whether from -> to appears in the transition table
func CanTransition(from, to CaseStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority is the severity tier of a case
type Priority string

const (
	PriorityLow      Priority = "Baja"
	PriorityMedium   Priority = "Media"
	PriorityHigh     Priority = "Alta"
	PriorityCritical Priority = "Crítica"
)

// ParsePriority converts raw input into a known priority
func ParsePriority(s string) (Priority, bool) {
	p := Priority(s)
	return p, p.Rank() > 0
}

// Rank orders priorities Baja < Media < Alta < Crítica; unknown values rank 0
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// SourceType identifies which ledger an obligation came from
type SourceType string

const (
	SourceFinancing SourceType = "financing"
	SourceInvoice   SourceType = "invoice"
)

// NoticeStage is the collection notice a case qualifies for by age
type NoticeStage string

const (
	NoticeNone   NoticeStage = "none"
	NoticeFirst  NoticeStage = "first"
	NoticeSecond NoticeStage = "second"
	NoticeFinal  NoticeStage = "final"
)
