package email

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSendPasswordResetOTPBuildsMessage(t *testing.T) {
	svc := NewEmailService(EmailConfig{
		SMTPHost:  "smtp.example.com",
		SMTPPort:  2525,
		FromName:  "Quotations",
		FromEmail: "no-reply@example.com",
	})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		require.Nil(t, a)
		return nil
	}

	require.NoError(t, svc.SendPasswordResetOTP(context.Background(), "owner@example.com", "482913", 10*time.Minute))
	require.Equal(t, "smtp.example.com:2525", gotAddr)
	require.Equal(t, []string{"owner@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Your password reset code - Quotations\r\n")
	require.Contains(t, string(gotMsg), "482913")
	require.Contains(t, string(gotMsg), "10 minutes")
}

func TestSendPasswordResetOTPWrapsFailure(t *testing.T) {
	svc := NewEmailService(EmailConfig{SMTPHost: "h", SMTPPort: 25, SMTPUsername: "u", SMTPPassword: "p"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }

	err := svc.SendPasswordResetOTP(context.Background(), "a@b.c", "1", time.Minute)
	require.ErrorContains(t, err, "failed to send email: 421 busy")
}

func TestInMemorySender(t *testing.T) {
	m := &InMemorySender{}
	_, ok := m.Last()
	require.False(t, ok)

	require.NoError(t, m.SendPasswordResetOTP(context.Background(), "a@b.c", "123456", time.Minute))
	last, ok := m.Last()
	require.True(t, ok)
	require.Equal(t, "123456", last.Code)
	require.Len(t, m.Sent(), 1)
}

func TestLogSenderWritesCode(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	require.NoError(t, s.SendPasswordResetOTP(context.Background(), "a@b.c", "654321", time.Minute))
	require.Contains(t, buf.String(), `"code":"654321"`)
	require.Contains(t, buf.String(), `"to":"a@b.c"`)
}
