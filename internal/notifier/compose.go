package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/segyhp/collections-engine/internal/domain"
)

var noticeSubjects = map[domain.NoticeStage]string{
	domain.NoticeFirst:  "Recordatorio de pago pendiente",
	domain.NoticeSecond: "Segundo aviso de pago pendiente",
	domain.NoticeFinal:  "Aviso final de deuda pendiente",
}

// ComposeNotice builds the collection notice for a case at its current stage
func ComposeNotice(c *domain.DelinquencyCase, patient *domain.Patient, settings domain.Settings) Message {
	stage := c.NoticeStage
	if stage == domain.NoticeNone {
		stage = domain.NoticeFirst
	}

	name := patient.FullName()
	lines := []string{
		fmt.Sprintf("Estimado/a %s,", name),
		"",
		fmt.Sprintf("Registramos un saldo pendiente asociado a: %s.", c.Title),
		fmt.Sprintf("Fecha de vencimiento: %s (%d días de atraso).", c.OriginalDueDate.Format("02-01-2006"), c.DaysOverdue),
		fmt.Sprintf("Monto adeudado: %s %s", c.OverdueAmount.StringFixed(2), c.Currency),
	}
	if c.LateFeeAmount.IsPositive() {
		lines = append(lines, fmt.Sprintf("Recargo por mora: %s %s", c.LateFeeAmount.StringFixed(2), c.Currency))
	}
	lines = append(lines, fmt.Sprintf("Total a pagar: %s %s", c.TotalOwed.StringFixed(2), c.Currency))
	if stage == domain.NoticeFinal {
		lines = append(lines, "", "Este es el último aviso antes de iniciar gestiones adicionales de cobranza.")
	}
	lines = append(lines, "")
	lines = append(lines, contactLines(settings)...)

	plain := strings.Join(lines, "\n")

	msg := Message{
		ToName:    name,
		Subject:   noticeSubjects[stage],
		PlainText: plain,
		HTML:      toHTML(lines),
	}
	if patient.Email != nil {
		msg.ToEmail = *patient.Email
	}
	return msg
}

// ComposeReminderDigest lists the cases whose follow-up is due for clinic staff
func ComposeReminderDigest(cases []*domain.DelinquencyCase, patients map[string]*domain.Patient, settings domain.Settings, today time.Time) Message {
	lines := []string{
		fmt.Sprintf("Seguimientos de cobranza pendientes al %s: %d", today.Format("02-01-2006"), len(cases)),
		"",
	}
	for _, c := range cases {
		patient := c.PatientID
		if p, ok := patients[c.PatientID]; ok {
			patient = p.FullName() + " (" + p.FileNumber + ")"
		}
		next := ""
		if c.NextActionDate != nil {
			next = c.NextActionDate.Format("02-01-2006")
		}
		lines = append(lines, fmt.Sprintf("- %s | %s | %s %s | %s | próxima acción %s",
			patient, c.Title, c.TotalOwed.StringFixed(2), c.Currency, c.Priority, next))
	}

	return Message{
		ToEmail:   settings.ContactEmail,
		ToName:    settings.ContactName,
		Subject:   fmt.Sprintf("Seguimientos de cobranza (%d)", len(cases)),
		PlainText: strings.Join(lines, "\n"),
		HTML:      toHTML(lines),
	}
}

func contactLines(settings domain.Settings) []string {
	var lines []string
	if settings.ContactName != "" {
		lines = append(lines, settings.ContactName)
	}
	if settings.ContactPhone != "" {
		lines = append(lines, "Teléfono: "+settings.ContactPhone)
	}
	if settings.ContactEmail != "" {
		lines = append(lines, "Correo: "+settings.ContactEmail)
	}
	return lines
}

func toHTML(lines []string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, line := range lines {
		if line == "" {
			b.WriteString("<br/>")
			continue
		}
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
