package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sender delivers transactional emails
type Sender interface {
	SendPasswordResetOTP(ctx context.Context, toEmail, code string, validFor time.Duration) error
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	FromEmail    string
	AppName      string
}

// EmailService handles email sending over SMTP
type EmailService struct {
	config EmailConfig
	tmpl   *template.Template
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig) *EmailService {
	if config.AppName == "" {
		config.AppName = config.FromName
	}
	return &EmailService{
		config: config,
		tmpl:   template.Must(template.New("password_reset_otp").Parse(passwordResetOTPTemplate)),
		send:   smtp.SendMail,
	}
}

// SendPasswordResetOTP emails a one-time password reset code
func (s *EmailService) SendPasswordResetOTP(ctx context.Context, toEmail, code string, validFor time.Duration) error {
	htmlContent, err := s.renderPasswordResetOTP(toEmail, code, validFor)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := "Your password reset code - " + s.config.AppName
	message := s.buildHTMLEmail(toEmail, subject, htmlContent)

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sendEmail(toEmail, message)
}

// sendEmail sends an email using SMTP
func (s *EmailService) sendEmail(to string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	if err := s.send(addr, auth, s.config.FromEmail, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildHTMLEmail builds an HTML email message
func (s *EmailService) buildHTMLEmail(to, subject, htmlBody string) []byte {
	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n",
		s.config.FromName,
		s.config.FromEmail,
		to,
		subject,
	)

	return []byte(headers + htmlBody)
}

func (s *EmailService) renderPasswordResetOTP(email, code string, validFor time.Duration) (string, error) {
	data := struct {
		Email   string
		Code    string
		Minutes int
		AppName string
	}{
		Email:   email,
		Code:    code,
		Minutes: int(validFor.Minutes()),
		AppName: s.config.AppName,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SentEmail is a message captured by InMemorySender
type SentEmail struct {
	To       string
	Code     string
	ValidFor time.Duration
}

// InMemorySender records messages instead of sending them. Used in tests and
// when SMTP is not configured in development.
type InMemorySender struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func (m *InMemorySender) SendPasswordResetOTP(_ context.Context, toEmail, code string, validFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentEmail{To: toEmail, Code: code, ValidFor: validFor})
	return nil
}

// Sent returns a copy of everything captured so far
func (m *InMemorySender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent message, if any
func (m *InMemorySender) Last() (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentEmail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// LogSender writes codes to the log instead of mailing them. Only meant for
// development setups without SMTP.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendPasswordResetOTP(_ context.Context, toEmail, code string, validFor time.Duration) error {
	s.log.Warn().
		Str("to", toEmail).
		Str("code", code).
		Dur("valid_for", validFor).
		Msg("password reset code (smtp disabled)")
	return nil
}

const passwordResetOTPTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Password reset code</title>
</head>
<body style="margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f7fa;">
    <table role="presentation" style="width: 100%; border-collapse: collapse;">
        <tr>
            <td style="padding: 40px 0;">
                <table role="presentation" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 12px;">
                    <tr>
                        <td style="background-color: #1f3a5f; padding: 32px 30px; text-align: center;">
                            <h1 style="color: #ffffff; margin: 0; font-size: 26px;">{{.AppName}}</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 36px 30px; color: #4a5568; font-size: 16px; line-height: 1.6;">
                            <p style="margin: 0 0 16px 0;">We received a request to reset the password for <strong>{{.Email}}</strong>.</p>
                            <p style="margin: 0 0 24px 0;">Enter this code to continue. It expires in <strong>{{.Minutes}} minutes</strong>.</p>
                            <p style="margin: 0 0 24px 0; text-align: center; font-size: 32px; letter-spacing: 8px; font-weight: 700; color: #1a1a2e;">{{.Code}}</p>
                            <p style="margin: 0; font-size: 14px; color: #718096;">If you did not request this, ignore this email. Your password stays unchanged.</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`
