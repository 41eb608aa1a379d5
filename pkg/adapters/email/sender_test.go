package email_test

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/convo/pkg/adapters/email"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func capture(c *captured, err error) email.SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*c = captured{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return err
	}
}

func TestSender_PlainText(t *testing.T) {
	var got captured
	s := email.New(email.Config{Host: "smtp.local", Port: 2525, From: "bot@convo"}, email.WithSendFunc(capture(&got, nil)))

	err := s.Send(context.Background(), ports.Email{To: "a@b.co, c@d.co", Subject: "Hi", Body: "Hello there"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", got.addr)
	assert.Nil(t, got.auth)
	assert.Equal(t, "bot@convo", got.from)
	assert.Equal(t, []string{"a@b.co", "c@d.co"}, got.to)
	assert.Contains(t, got.msg, "Subject: Hi\r\n")
	assert.Contains(t, got.msg, "text/plain")
	assert.Contains(t, got.msg, "Hello there")
}

func TestSender_AttachmentAndOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))

	var got captured
	s := email.New(email.Config{}, email.WithSendFunc(capture(&got, nil)))

	err := s.Send(context.Background(), ports.Email{
		To:          "ops@convo",
		Subject:     "Upload",
		Body:        "See attached",
		Attachments: []ports.Attachment{{Path: path}},
		SMTP: &domain.EmailConfig{
			SMTPServer: "mail.tenant", SMTPPort: 465, Username: "user", Password: "pw", From: "tenant@convo",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.tenant:465", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "tenant@convo", got.from)
	assert.Contains(t, got.msg, "multipart/mixed")
	assert.Contains(t, got.msg, `filename=scan.pdf`)
	assert.Contains(t, got.msg, "JVBERg==")
}

func TestSender_Errors(t *testing.T) {
	t.Run("No Server", func(t *testing.T) {
		err := email.New(email.Config{}).Send(context.Background(), ports.Email{To: "x@y"})
		var cerr *domain.CollaboratorError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("SMTP Failure", func(t *testing.T) {
		var got captured
		s := email.New(email.Config{Host: "smtp.local"}, email.WithSendFunc(capture(&got, errors.New("550 rejected"))))
		err := s.Send(context.Background(), ports.Email{To: "x@y"})
		var cerr *domain.CollaboratorError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, domain.KindConnectivity, cerr.Kind)
	})
}
