// Package pipeline runs the three certificate stages (fill, generate, send)
// against the certificate worksheet of a webinar spreadsheet.
//
// The worksheet is the only progress record: every stage starts by reading
// it, and the send stage marks each row right after its mail goes out, so a
// stage can be re-run at any time and picks up where the last run stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"webinar-certs/internal/mail"
	"webinar-certs/internal/models"
	"webinar-certs/internal/morph"
	"webinar-certs/internal/sheets"
)

const (
	DefaultWorksheet       = "сертификаты"
	DefaultMessageTemplate = "Здравствуйте, {name}! Благодарю вас за участие."
	DefaultFillInterval    = time.Second
	DefaultSendInterval    = 3 * time.Second

	// StagedFileName is the attachment name recipients see
	StagedFileName = "certificate.jpeg"
)

type NameResolver interface {
	Resolve(ctx context.Context, fullName string) (morph.Result, error)
}

type Renderer interface {
	Render(ctx context.Context, name, dates string, year int, dir string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Archiver keeps a remote copy of certificates
type Archiver interface {
	Archive(ctx context.Context, path string) error
}

// Notifier delivers the certificate over a second channel
type Notifier interface {
	SendCertificate(ctx context.Context, phone, caption, path string) error
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Deps are the collaborators of a pipeline. Archiver and Notifier are optional.
type Deps struct {
	Document sheets.Document
	Resolver NameResolver
	Renderer Renderer
	Mailer   Mailer
	Archiver Archiver
	Notifier Notifier
	Sleeper  Sleeper
	Log      zerolog.Logger
}

// Settings describe one webinar run
type Settings struct {
	Webinar         models.WebinarRecord
	Attendees       []models.Attendee
	Worksheet       string
	CertDir         string
	Bcc             []string
	MessageTemplate string
	FillInterval    time.Duration
	SendInterval    time.Duration
}

// PartialFillError means the certificate worksheet has some rows but fewer
// than there are attendees. Filling it would duplicate or skip people, so the
// operator has to clear or complete it by hand.
type PartialFillError struct {
	Rows     int
	Expected int
}

func (e *PartialFillError) Error() string {
	return fmt.Sprintf("certificate worksheet is partially filled: %d of %d rows", e.Rows, e.Expected)
}

type Pipeline struct {
	deps     Deps
	settings Settings
	log      zerolog.Logger
}

// New validates deps and fills settings defaults
func New(deps Deps, settings Settings) (*Pipeline, error) {
	if deps.Document == nil {
		return nil, errors.New("pipeline: document is required")
	}
	if deps.Resolver == nil || deps.Renderer == nil || deps.Mailer == nil {
		return nil, errors.New("pipeline: resolver, renderer and mailer are required")
	}
	if settings.CertDir == "" {
		return nil, errors.New("pipeline: certificates dir is required")
	}
	if deps.Sleeper == nil {
		deps.Sleeper = timerSleeper{}
	}
	if settings.Worksheet == "" {
		settings.Worksheet = DefaultWorksheet
	}
	if settings.MessageTemplate == "" {
		settings.MessageTemplate = DefaultMessageTemplate
	}
	if settings.FillInterval <= 0 {
		settings.FillInterval = DefaultFillInterval
	}
	if settings.SendInterval <= 0 {
		settings.SendInterval = DefaultSendInterval
	}

	return &Pipeline{
		deps:     deps,
		settings: settings,
		log: deps.Log.With().
			Str("component", "Pipeline").
			Int64("webinar_id", settings.Webinar.ID).
			Logger(),
	}, nil
}

// Run executes fill, generate and send in order and stops at the first error
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Fill(ctx); err != nil {
		return err
	}
	if err := p.Generate(ctx); err != nil {
		return err
	}
	return p.Send(ctx)
}

// Rows returns the data rows of the certificate worksheet
func (p *Pipeline) Rows(ctx context.Context) ([]models.CertificateRow, error) {
	rows, _, err := p.worksheetRows(ctx)
	return rows, err
}

// worksheetRows reads the certificate worksheet. It returns the data rows and
// the number of header rows in front of them; data row i lives on sheet row
// i+headerRows+1.
func (p *Pipeline) worksheetRows(ctx context.Context) ([]models.CertificateRow, int, error) {
	cells, err := p.deps.Document.Rows(ctx, p.settings.Worksheet)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read certificate worksheet: %w", err)
	}
	headerRows := 0
	if len(cells) > 0 && models.IsCertificateHeader(cells[0]) {
		headerRows = 1
	}
	rows := make([]models.CertificateRow, 0, len(cells)-headerRows)
	for _, c := range cells[headerRows:] {
		rows = append(rows, models.ParseCertificateRow(c))
	}
	return rows, headerRows, nil
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
