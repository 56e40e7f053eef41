// Package mail delivers certificate e-mails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

// Message is one outgoing e-mail. Attachments are file paths.
type Message struct {
	To          string
	Bcc         []string
	Subject     string
	Body        string
	Attachments []string
}

func (m Message) validate() error {
	if !strings.Contains(m.To, "@") {
		return fmt.Errorf("invalid recipient %q", m.To)
	}
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// SMTPSender sends messages through an authenticated SMTP server
type SMTPSender struct {
	cfg SMTPConfig
	log zerolog.Logger
}

// NewSMTPSender creates a sender. Gmail needs an application password.
func NewSMTPSender(cfg SMTPConfig, log zerolog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{
		cfg: cfg,
		log: log.With().Str("component", "SMTP").Logger(),
	}, nil
}

// Send delivers msg. Errors are returned as is, there is no retry here.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	}
	if s.cfg.SSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	s.log.Info().Str("to", msg.To).Int("attachments", len(msg.Attachments)).Msg("Mail sent")
	return nil
}

func (s *SMTPSender) buildMsg(msg Message) (*gomail.Msg, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(msg.Bcc) > 0 {
		if err := m.Bcc(msg.Bcc...); err != nil {
			return nil, fmt.Errorf("invalid bcc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	for _, path := range msg.Attachments {
		m.AttachFile(path, gomail.WithFileName(filepath.Base(path)))
	}
	return m, nil
}

// Stub logs messages instead of sending them
type Stub struct {
	log zerolog.Logger
}

func NewStub(log zerolog.Logger) *Stub {
	return &Stub{log: log.With().Str("component", "MailStub").Logger()}
}

func (s *Stub) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.Info().
		Str("to", msg.To).
		Strs("bcc", msg.Bcc).
		Str("subject", msg.Subject).
		Strs("attachments", msg.Attachments).
		Msg("Dry run, mail not sent")
	return nil
}
