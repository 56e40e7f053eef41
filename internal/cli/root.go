// Package cli implements the certbot command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"webinar-certs/internal/pipeline"
	"webinar-certs/internal/sheets"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitCommandError, Err: fmt.Errorf(format, args...)}
}

// GetExitCode returns the exit code for err, ExitFailure unless err says otherwise
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	JSONLogs   bool
	DryRun     bool

	// collaborators replaced in tests
	overrides overrides
}

type overrides struct {
	opener   sheets.Opener
	resolver pipeline.NameResolver
	renderer pipeline.Renderer
	mailer   pipeline.Mailer
	sleeper  pipeline.Sleeper
	now      func() time.Time
}

// NewRootCommand creates the certbot command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certbot",
		Short: "Webinar certificates: names, images and mail",
		Long: `certbot turns a webinar's participant spreadsheet into personal certificates.

Stages run one by one or together:
  fill      write the certificate worksheet with names in the dative case
  generate  render certificate images
  send      mail every certificate not marked as sent

Progress lives in the spreadsheet, so any stage can be re-run safely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.JSONLogs, "json-logs", false, "log as JSON instead of console text")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "log mails instead of sending them")

	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newWebinarsCommand(opts))
	cmd.AddCommand(newStageCommand(opts, "fill", "Fill the certificate worksheet", (*pipeline.Pipeline).Fill))
	cmd.AddCommand(newStageCommand(opts, "generate", "Render certificate images", (*pipeline.Pipeline).Generate))
	send := newStageCommand(opts, "send", "Mail certificates not sent yet", (*pipeline.Pipeline).Send)
	send.Long = `Mail every certificate whose row is not marked as sent, then mark the row.

Operators receive a blind copy of each mail when CERTBOT_BCC (or mail.bcc in
the config file) lists their addresses. With no addresses set, mails go to
attendees only and a warning is logged.`
	cmd.AddCommand(send)
	cmd.AddCommand(newStageCommand(opts, "run", "Fill, generate and send", (*pipeline.Pipeline).Run))
	cmd.AddCommand(newMorphCommand(opts))
	cmd.AddCommand(newContactsCommand(opts))
	cmd.AddCommand(newWhatsAppCommand(opts))
	cmd.AddCommand(newMenuCommand(opts))

	return cmd
}

func newLogger(w io.Writer, opts *RootOptions) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	if !opts.JSONLogs {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
