package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"webinar-certs/internal/mail"
	"webinar-certs/internal/models"
)

// Send mails the certificate to every row not yet marked as sent and marks
// each row straight after its mail is accepted. A mail or sheet error stops
// the stage; rows handled before it stay marked.
func (p *Pipeline) Send(ctx context.Context) error {
	log := p.log.With().Str("stage", "send").Logger()
	if len(p.settings.Bcc) == 0 {
		log.Warn().Msg("No BCC addresses configured, operators get no copy of the mail")
	}

	rows, headerRows, err := p.worksheetRows(ctx)
	if err != nil {
		return err
	}

	sent, skipped := 0, 0
	for i, row := range rows {
		if row.Sent {
			log.Debug().Str("fio", row.FullName).Msg("Already sent")
			continue
		}
		if !strings.Contains(row.Email, "@") {
			log.Warn().Str("fio", row.FullName).Str("email", row.Email).Msg("No valid email, row left unmarked")
			skipped++
			continue
		}

		if sent > 0 {
			if err := p.deps.Sleeper.Sleep(ctx, p.settings.SendInterval); err != nil {
				return err
			}
		}

		path, _, err := p.ensureCertificate(ctx, row)
		if err != nil {
			return err
		}

		log.Info().Str("fio", row.FullName).Str("email", row.Email).Msg("Sending email")
		if err := p.mailCertificate(ctx, row, path); err != nil {
			return fmt.Errorf("failed to send certificate to %s: %w", row.Email, err)
		}

		sheetRow := i + headerRows + 1
		if err := p.deps.Document.UpdateCell(ctx, p.settings.Worksheet, sheetRow, models.ColumnSent, models.SentMarker); err != nil {
			return fmt.Errorf("failed to mark row %d as sent: %w", sheetRow, err)
		}
		sent++

		p.notify(ctx, row, path)
	}

	log.Info().Int("sent", sent).Int("skipped", skipped).Msg("Sending done")
	return nil
}

// mailCertificate attaches a copy of the certificate under a fixed latin name.
// The copy lives in its own temp dir which is removed whatever happens.
func (p *Pipeline) mailCertificate(ctx context.Context, row models.CertificateRow, path string) error {
	dir, err := os.MkdirTemp("", "certbot-send-*")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	staged := filepath.Join(dir, StagedFileName)
	if err := copyFile(path, staged); err != nil {
		return err
	}

	return p.deps.Mailer.Send(ctx, mail.Message{
		To:          row.Email,
		Bcc:         p.settings.Bcc,
		Subject:     p.settings.Webinar.Title,
		Body:        row.PersonalMessage(),
		Attachments: []string{staged},
	})
}

// notify sends the certificate to the attendee's phone when a notifier is
// configured. Failures only affect this row and are logged.
func (p *Pipeline) notify(ctx context.Context, row models.CertificateRow, path string) {
	if p.deps.Notifier == nil {
		return
	}
	phone := p.phoneOf(row.Email)
	if phone == "" {
		return
	}
	if err := p.deps.Notifier.SendCertificate(ctx, phone, row.PersonalMessage(), path); err != nil {
		p.log.Warn().Err(err).Str("fio", row.FullName).Msg("Failed to send certificate to phone")
	}
}

func (p *Pipeline) phoneOf(email string) string {
	for _, a := range p.settings.Attendees {
		if strings.EqualFold(strings.TrimSpace(a.Email), email) {
			return a.Phone
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open certificate: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to stage certificate: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to stage certificate: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to stage certificate: %w", err)
	}
	return nil
}
