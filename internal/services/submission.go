package services

import (
	"context"
	"fmt"
	"time"

	"goa.design/clue/log"

	"almondsense/internal/domain"
	"almondsense/internal/metrics"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	apperrors "almondsense/pkg/errors"
)

// SubmitPayload is the public contact form.
type SubmitPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Service  string `json:"service"`
	LandSize string `json:"land_size"`
	Message  string `json:"message"`
}

// SubmitResult is returned to the public form.
type SubmitResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SubmissionService implements the public submission endpoint
type SubmissionService struct {
	store       repository.Store[domain.Submission]
	mailer      Mailer
	notifyEmail string
	relay       notify.Relay
}

// NewSubmissionService creates a new submission service. relay may be nil.
func NewSubmissionService(store repository.Store[domain.Submission], mailer Mailer, notifyEmail string, relay notify.Relay) *SubmissionService {
	return &SubmissionService{store: store, mailer: mailer, notifyEmail: notifyEmail, relay: relay}
}

// Services lists the selectable services of the contact form.
func (s *SubmissionService) Services(context.Context) []string {
	return append([]string(nil), domain.Services...)
}

// Submit stores a new pending submission. Caller-supplied ids, timestamps
// and statuses are not accepted.
func (s *SubmissionService) Submit(ctx context.Context, p *SubmitPayload) (*SubmitResult, error) {
	ctx = log.With(ctx, log.KV{K: "svc", V: "submission"})
	log.Infof(ctx, "submit request: email=%s service=%s", p.Email, p.Service)

	sub, err := domain.NewSubmission(domain.Fields{
		"name":      p.Name,
		"email":     p.Email,
		"phone":     p.Phone,
		"company":   p.Company,
		"service":   p.Service,
		"land_size": p.LandSize,
		"message":   p.Message,
	})
	if err != nil {
		log.Infof(ctx, "submit rejected: %v", err)
		return nil, apperrors.Wrap(apperrors.ErrCodeValidation, err.Error(), err)
	}

	created, err := s.store.Create(ctx, sub)
	s.notify(ctx, err)
	if err != nil {
		log.Errorf(ctx, err, "submit failed")
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "Gagal Mengirim. Silakan coba lagi.", err)
	}

	log.Infof(ctx, "submit successful: id=%s", created.ID)
	metrics.RecordSubmission(created.Service)

	// Mail is best effort and never fails the request.
	mailCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.sendNotification(mailCtx, created); err != nil {
			log.Errorf(mailCtx, err, "failed to send notification email for %s", created.ID)
		}
	}()

	return &SubmitResult{
		ID:          created.ID,
		Status:      string(created.Status),
		Title:       "Berhasil Terkirim!",
		Description: "Tim kami akan menghubungi Anda dalam 1x24 jam.",
	}, nil
}

func (s *SubmissionService) notify(ctx context.Context, err error) {
	if s.relay == nil {
		return
	}
	n := notify.Notification{
		Title:       "Pengajuan Baru",
		Description: "Pengajuan baru diterima dari formulir kontak.",
		Outcome:     notify.Success,
		Op:          "submissions.create",
		At:          time.Now(),
	}
	if err != nil {
		n.Title, n.Description, n.Outcome = "Gagal Mengirim", "Pengajuan dari formulir kontak gagal disimpan.", notify.Failure
	}
	s.relay.Notify(ctx, n)
}

func (s *SubmissionService) sendNotification(ctx context.Context, sub domain.Submission) error {
	if s.notifyEmail == "" {
		log.Infof(ctx, "new submission %s from %s, no notify address configured", sub.ID, sub.Email)
		return nil
	}
	subject, htmlBody, textBody := submissionEmail(sub)
	if err := s.mailer.SendHTMLEmail(ctx, s.notifyEmail, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("notify %s: %w", s.notifyEmail, err)
	}
	log.Infof(ctx, "notification email sent for submission %s", sub.ID)
	return nil
}
