package mail

import (
	"context"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendDisabled(t *testing.T) {
	mailer, err := NewSMTP(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestNewSMTPValidatesConfig(t *testing.T) {
	_, err := NewSMTP(SMTPSettings{Enabled: true, Port: 25})
	require.Error(t, err)

	_, err = NewSMTP(SMTPSettings{Enabled: true, Host: "mail.example.com"})
	require.Error(t, err)
}

func TestSendFormatsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	mailer := &smtpMailer{
		cfg: SMTPSettings{
			Enabled: true,
			Host:    "mail.example.com",
			Port:    587,
			From:    "noreply@example.com",
		},
		sendFn: func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := mailer.Send(context.Background(), Message{
		To:      []string{"bob@example.com", "bob@example.com", ""},
		Subject: "You have been invited",
		Body:    "Join account Acme as member.",
	})
	require.NoError(t, err)
	require.Equal(t, "mail.example.com:587", gotAddr)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"bob@example.com"}, gotTo)

	text := string(gotMsg)
	require.True(t, strings.Contains(text, "Subject: You have been invited"))
	require.True(t, strings.Contains(text, "Join account Acme as member."))
}

func TestSendTimesOutOnStalledServer(t *testing.T) {
	// A server that accepts the connection but never sends the SMTP greeting.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	mailer, err := NewSMTP(SMTPSettings{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    addr.Port,
		From:    "noreply@example.com",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	err = mailer.Send(context.Background(), Message{
		To:      []string{"bob@example.com"},
		Subject: "hello",
		Body:    "hello",
	})
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestSendRejectsBadAddresses(t *testing.T) {
	mailer := &smtpMailer{
		cfg: SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 25, From: "noreply@example.com"},
		sendFn: func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("sendFn should not be reached")
			return nil
		},
	}

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}})
	require.Error(t, err)

	err = mailer.Send(context.Background(), Message{To: nil})
	require.Error(t, err)
}
