// Package email delivers outbound email over SMTP.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// Config holds the default SMTP server settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ConfigFromEnv reads CONVO_SMTP_* variables.
func ConfigFromEnv() Config {
	port, err := strconv.Atoi(os.Getenv("CONVO_SMTP_PORT"))
	if err != nil || port <= 0 {
		port = 587
	}
	return Config{
		Host:     strings.TrimSpace(os.Getenv("CONVO_SMTP_HOST")),
		Port:     port,
		Username: strings.TrimSpace(os.Getenv("CONVO_SMTP_USER")),
		Password: os.Getenv("CONVO_SMTP_PASSWORD"),
		From:     strings.TrimSpace(os.Getenv("CONVO_SMTP_FROM")),
	}
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender implements ports.EmailSender.
type Sender struct {
	cfg    Config
	send   SendFunc
	logger *slog.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

// WithSendFunc replaces smtp.SendMail, mostly for tests.
func WithSendFunc(fn SendFunc) Option {
	return func(s *Sender) {
		s.send = fn
	}
}

// New builds a sender. Host may be empty when every email carries its own
// SMTP settings.
func New(cfg Config, opts ...Option) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	s := &Sender{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers the email. SMTP failures are *domain.CollaboratorError of kind
// connectivity.
func (s *Sender) Send(ctx context.Context, e ports.Email) error {
	cfg := s.resolve(e)
	if cfg.Host == "" {
		return domain.NewCollaboratorError("send_email", domain.KindConnectivity, fmt.Errorf("no SMTP server configured"))
	}
	if e.To == "" {
		return fmt.Errorf("send_email: missing recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := e.From
	if from == "" {
		from = cfg.From
	}
	if from == "" {
		from = cfg.Username
	}

	msg, err := buildMessage(from, e)
	if err != nil {
		return fmt.Errorf("send_email: %w", err)
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	to := splitRecipients(e.To)

	if err := s.send(addr, auth, from, to, msg); err != nil {
		s.logger.Error("Failed to send email", "to", e.To, "error", err)
		return domain.NewCollaboratorError("send_email", domain.KindConnectivity, err)
	}
	s.logger.Info("Email sent", "to", e.To, "attachments", len(e.Attachments))
	return nil
}

func (s *Sender) resolve(e ports.Email) Config {
	cfg := s.cfg
	if o := e.SMTP; o != nil {
		if o.SMTPServer != "" {
			cfg.Host = o.SMTPServer
		}
		if o.SMTPPort != 0 {
			cfg.Port = o.SMTPPort
		}
		if o.Username != "" {
			cfg.Username = o.Username
			cfg.Password = o.Password
		}
		if o.From != "" {
			cfg.From = o.From
		}
	}
	return cfg
}

func splitRecipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func buildMessage(from string, e ports.Email) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", e.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(e.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(e.Body)
		return buf.Bytes(), nil
	}

	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, e.Body); err != nil {
		return nil, err
	}

	for _, a := range e.Attachments {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Path)
		}
		ct := mime.TypeByExtension(filepath.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.StdEncoding.EncodeToString(data)
		for len(enc) > 76 {
			if _, err := io.WriteString(part, enc[:76]+"\r\n"); err != nil {
				return nil, err
			}
			enc = enc[76:]
		}
		if _, err := io.WriteString(part, enc); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
