package service

import (
	"context"
	"time"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/metrics"
	"github.com/segyhp/collections-engine/internal/notifier"
	customError "github.com/segyhp/collections-engine/pkg/errors"
	"github.com/segyhp/collections-engine/pkg/utils"
)

// NoticeRunResult counts the outcome of an automatic notice run
type NoticeRunResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SendPendingNotices dispatches the notice of every Pendiente case that reached
// its first notice stage. Disabled unless the clinic enabled automatic notices.
func (s *CollectionsService) SendPendingNotices(ctx context.Context, clinicID string) (*NoticeRunResult, error) {
	result := &NoticeRunResult{}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if !settings.AutoSendNotices {
		s.log.DebugContext(ctx, "automatic notices disabled", "clinic_id", clinicID)
		return result, nil
	}

	pending := domain.CaseStatusPending
	cases, err := s.refreshedCases(ctx, domain.CaseFilter{ClinicID: clinicID, Status: &pending})
	if err != nil {
		return nil, err
	}

	for _, c := range cases {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if c.NoticeStage == domain.NoticeNone {
			result.Skipped++
			continue
		}

		if err := s.sendNotice(ctx, c, settings, domain.SystemActor); err != nil {
			result.Failed++
			s.log.WarnContext(ctx, "automatic notice failed", "clinic_id", clinicID, "case_id", c.ID, "error", err)
			continue
		}
		result.Sent++
	}

	s.log.InfoContext(ctx, "notice run finished",
		"clinic_id", clinicID,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// SendFollowUpReminders mails the clinic contact a digest of the open cases
// whose next action falls within the reminder lead window. It returns how many
// cases the digest listed.
func (s *CollectionsService) SendFollowUpReminders(ctx context.Context, clinicID string) (int, error) {
	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	today := utils.StartOfDay(now, s.opts.Location)
	until := today.AddDate(0, 0, settings.ReminderLeadDays+1).Add(-time.Nanosecond)

	cases, err := s.CaseRepo.ListDueForFollowUp(ctx, clinicID, until)
	if err != nil {
		return 0, dbError(err)
	}
	if len(cases) == 0 {
		return 0, nil
	}

	patientIDs := make([]string, 0, len(cases))
	for _, c := range cases {
		c.Refresh(settings, now, s.opts.Location)
		patientIDs = append(patientIDs, c.PatientID)
	}
	patients, err := s.PatientRepo.GetByIDs(ctx, clinicID, patientIDs)
	if err != nil {
		return 0, dbError(err)
	}

	msg := notifier.ComposeReminderDigest(cases, patients, settings, today)
	if msg.ToEmail == "" {
		s.log.InfoContext(ctx, "follow-up digest not delivered, no clinic contact email",
			"clinic_id", clinicID, "cases", len(cases))
		metrics.RecordNotice(notifier.ChannelLog, "sent")
		return len(cases), nil
	}

	channel := s.notifier.Channel()
	if err := s.notifier.Send(ctx, msg); err != nil {
		metrics.RecordNotice(channel, "failed")
		return 0, customError.WrapNotifierError(channel, err)
	}
	metrics.RecordNotice(channel, "sent")

	s.log.InfoContext(ctx, "follow-up digest sent", "clinic_id", clinicID, "cases", len(cases))
	return len(cases), nil
}
