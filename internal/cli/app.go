package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"webinar-certs/internal/archive"
	"webinar-certs/internal/certificate"
	"webinar-certs/internal/config"
	"webinar-certs/internal/importer"
	"webinar-certs/internal/mail"
	"webinar-certs/internal/models"
	"webinar-certs/internal/morph"
	"webinar-certs/internal/pipeline"
	"webinar-certs/internal/sheets"
	"webinar-certs/internal/storage"
	"webinar-certs/internal/whatsapp"
)

// app is what a command invocation works with: config, logger and the local
// store, plus collaborators created on first use.
type app struct {
	opts  *RootOptions
	cfg   *config.Config
	log   zerolog.Logger
	store *storage.Storage

	closers []func()
}

func newApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}

	log := newLogger(cmd.ErrOrStderr(), opts).With().
		Str("run_id", uuid.NewString()).
		Str("command", cmd.Name()).
		Logger()

	store, err := storage.NewStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{opts: opts, cfg: cfg, log: log, store: store}
	a.closers = append(a.closers, func() { store.Close() })
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) webinar(ctx context.Context, arg string) (models.WebinarRecord, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return models.WebinarRecord{}, usageError("invalid webinar id %q", arg)
	}
	return a.store.Webinars().Require(ctx, id)
}

func (a *app) opener(ctx context.Context) (sheets.Opener, error) {
	if a.opts.overrides.opener != nil {
		return a.opts.overrides.opener, nil
	}
	if err := a.cfg.Validate(config.RequireSheets); err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}
	return sheets.NewClient(ctx, a.cfg.GoogleKeyFile, a.log)
}

func (a *app) importer(ctx context.Context) (*importer.Service, error) {
	opener, err := a.opener(ctx)
	if err != nil {
		return nil, err
	}
	return importer.NewService(opener, a.store.Webinars(), importer.Config{
		ParticipantsWorksheet: a.cfg.Sheets.ParticipantsWorksheet,
		RosterFirstRow:        a.cfg.Sheets.RosterFirstRow,
	}, a.opts.overrides.now, a.log), nil
}

func (a *app) resolver() (pipeline.NameResolver, error) {
	if a.opts.overrides.resolver != nil {
		return a.opts.overrides.resolver, nil
	}
	client := morph.NewClient(morph.Config{
		URL:      a.cfg.Morpher.URL,
		Token:    a.cfg.Morpher.Token,
		MaxTries: uint(max(a.cfg.Morpher.MaxTries, 0)),
		Timeout:  a.cfg.Morpher.Timeout,
	}, a.log)
	return morph.NewResolver(a.store.NameMorphs(), client, a.cfg.Morpher.CacheSize, a.log)
}

func (a *app) renderer() (pipeline.Renderer, error) {
	if a.opts.overrides.renderer != nil {
		return a.opts.overrides.renderer, nil
	}
	return certificate.NewRenderer(certificate.Config{
		Template: a.cfg.Certificate.Template,
		Heading:  a.cfg.Certificate.Heading,
	}, a.log)
}

func (a *app) mailer() (pipeline.Mailer, error) {
	if a.opts.overrides.mailer != nil {
		return a.opts.overrides.mailer, nil
	}
	if a.opts.DryRun {
		return mail.NewStub(a.log), nil
	}
	if err := a.cfg.Validate(config.RequireSMTP); err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     a.cfg.SMTP.Host,
		Port:     a.cfg.SMTP.Port,
		Username: a.cfg.SMTP.Username,
		Password: a.cfg.SMTP.Password,
		From:     a.cfg.SMTP.From,
		SSL:      a.cfg.SMTP.SSL,
	}, a.log)
}

func (a *app) archiver(ctx context.Context) (pipeline.Archiver, error) {
	if a.cfg.S3.Bucket == "" {
		return nil, nil
	}
	arch, err := archive.NewS3Archive(ctx, archive.S3Config{
		Region:          a.cfg.S3.Region,
		Bucket:          a.cfg.S3.Bucket,
		Prefix:          a.cfg.S3.Prefix,
		AccessKeyID:     a.cfg.S3.AccessKeyID,
		SecretAccessKey: a.cfg.S3.SecretAccessKey,
	}, a.log)
	if err != nil {
		return nil, err
	}
	return arch, nil
}

func (a *app) whatsapp(ctx context.Context) (*whatsapp.Service, error) {
	return whatsapp.NewService(ctx, &whatsapp.Config{DataDir: a.cfg.DataDir}, a.log)
}

func (a *app) notifier(ctx context.Context) (pipeline.Notifier, error) {
	if !a.cfg.WhatsApp.Notify || a.opts.DryRun {
		return nil, nil
	}
	wa, err := a.whatsapp(ctx)
	if err != nil {
		return nil, err
	}
	if err := wa.Connect(); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, wa.Disconnect)
	return wa, nil
}

// pipeline wires everything a stage needs for one webinar
func (a *app) pipeline(ctx context.Context, rec models.WebinarRecord) (*pipeline.Pipeline, error) {
	svc, err := a.importer(ctx)
	if err != nil {
		return nil, err
	}
	doc, attendees, err := svc.Open(ctx, rec)
	if err != nil {
		return nil, err
	}
	a.log.Info().Int64("webinar_id", rec.ID).Int("attendees", len(attendees)).Msg("Roster loaded")

	deps := pipeline.Deps{Document: doc, Sleeper: a.opts.overrides.sleeper, Log: a.log}
	if deps.Resolver, err = a.resolver(); err != nil {
		return nil, err
	}
	if deps.Renderer, err = a.renderer(); err != nil {
		return nil, err
	}
	if deps.Mailer, err = a.mailer(); err != nil {
		return nil, err
	}
	if deps.Archiver, err = a.archiver(ctx); err != nil {
		return nil, err
	}
	if deps.Notifier, err = a.notifier(ctx); err != nil {
		return nil, err
	}

	return pipeline.New(deps, pipeline.Settings{
		Webinar:         rec,
		Attendees:       attendees,
		Worksheet:       a.cfg.Sheets.CertificatesWorksheet,
		CertDir:         a.cfg.WebinarCertificatesDir(rec.Dates, rec.Year),
		Bcc:             a.cfg.Mail.Bcc,
		MessageTemplate: a.cfg.Mail.MessageTemplate,
		FillInterval:    a.cfg.Pacing.FillInterval,
		SendInterval:    a.cfg.Pacing.SendInterval,
	})
}

// withApp runs fn with an app that is closed afterwards
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
