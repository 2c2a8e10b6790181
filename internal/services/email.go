package services

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"goa.design/clue/log"

	"almondsense/internal/config"
	"almondsense/internal/domain"
)

// Mailer sends e-mail.
type Mailer interface {
	SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
	IsEnabled() bool
}

// EmailService handles sending emails
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendHTMLEmail sends an HTML email with plain text fallback
func (s *EmailService) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.cfg.Enabled {
		log.Infof(ctx, "email disabled, would send to %s: %s", to, subject)
		return nil
	}

	// Validate configuration
	if s.cfg.SMTPHost == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("email service not properly configured")
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	to, subject = headerValue(to), headerValue(subject)

	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	boundary := fmt.Sprintf("----=_AlmondSense_%d", time.Now().UnixNano())

	headers := fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", to) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"MIME-Version: 1.0\r\n" +
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary) +
		"\r\n"

	message := headers +
		fmt.Sprintf("--%s\r\n", boundary) +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		textBody + "\r\n"

	if htmlBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary) +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			htmlBody + "\r\n"
	}

	message += fmt.Sprintf("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// IsEnabled returns whether email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.cfg.Enabled
}

// headerValue drops line breaks so user text cannot add mail headers.
func headerValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// submissionEmail renders the operator notification for a new lead.
func submissionEmail(sub domain.Submission) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("Pengajuan baru dari %s", sub.Name)
	submitted := sub.CreatedAt.Format("2 January 2006 15:04 MST")

	esc := html.EscapeString
	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html lang="id">
<head>
    <meta charset="UTF-8">
    <title>Pengajuan Baru</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #3F7D20;">Pengajuan Baru</h2>
        <div style="background: #F8FAFC; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <p><strong>Nama:</strong> %s</p>
            <p><strong>Email:</strong> <a href="mailto:%s">%s</a></p>
            <p><strong>Telepon:</strong> %s</p>
            <p><strong>Perusahaan:</strong> %s</p>
            <p><strong>Layanan:</strong> %s</p>
            <p><strong>Luas Lahan:</strong> %s</p>
            <p><strong>Dikirim:</strong> %s</p>
        </div>
        <div style="background: #FFFFFF; padding: 20px; border-left: 4px solid #3F7D20; margin: 20px 0;">
            <h3 style="margin-top: 0;">Pesan:</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>
        <p style="color: #64748B; font-size: 14px;">ID Pengajuan: %s</p>
    </div>
</body>
</html>`, esc(sub.Name), esc(sub.Email), esc(sub.Email), esc(sub.Phone), esc(orDash(sub.Company)),
		esc(sub.Service), esc(orDash(sub.LandSize)), submitted, esc(orDash(sub.Message)), sub.ID)

	textBody = fmt.Sprintf(`Pengajuan Baru

Nama: %s
Email: %s
Telepon: %s
Perusahaan: %s
Layanan: %s
Luas Lahan: %s
Dikirim: %s

Pesan:
%s

ID Pengajuan: %s`, sub.Name, sub.Email, sub.Phone, orDash(sub.Company), sub.Service,
		orDash(sub.LandSize), submitted, orDash(sub.Message), sub.ID)

	return subject, htmlBody, textBody
}
