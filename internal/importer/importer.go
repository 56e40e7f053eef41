// Package importer registers webinars from their participant spreadsheets and
// reads the attendee roster.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"webinar-certs/internal/models"
	"webinar-certs/internal/sheets"
)

const (
	DefaultParticipantsWorksheet = "участники"
	DefaultRosterFirstRow        = 5
)

// ImportError wraps whatever made an import fail. Nothing is stored then.
type ImportError struct {
	URL string
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to import %s: %v", e.URL, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

type WebinarStore interface {
	Add(ctx context.Context, rec models.WebinarRecord) (int64, error)
}

type Config struct {
	// ParticipantsWorksheet holds the date in A1, the title in A2 and the
	// roster from RosterFirstRow on.
	ParticipantsWorksheet string
	// RosterFirstRow is the zero-based index of the first attendee row
	RosterFirstRow int
}

type Service struct {
	opener   sheets.Opener
	webinars WebinarStore
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates the import service. now is used for the webinar year
// and may be nil.
func NewService(opener sheets.Opener, webinars WebinarStore, cfg Config, now func() time.Time, log zerolog.Logger) *Service {
	if cfg.ParticipantsWorksheet == "" {
		cfg.ParticipantsWorksheet = DefaultParticipantsWorksheet
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		opener:   opener,
		webinars: webinars,
		cfg:      cfg,
		now:      now,
		log:      log.With().Str("component", "Importer").Logger(),
	}
}

// ImportFromURL reads the webinar header from the spreadsheet at url and
// stores it. Importing the same webinar again returns the existing id.
func (s *Service) ImportFromURL(ctx context.Context, url string) (int64, error) {
	doc, err := s.opener.Open(ctx, url)
	if err != nil {
		return 0, &ImportError{URL: url, Err: err}
	}
	rows, err := doc.Rows(ctx, s.cfg.ParticipantsWorksheet)
	if err != nil {
		return 0, &ImportError{URL: url, Err: err}
	}

	dates := cell(rows, 0, 0)
	title := cell(rows, 1, 0)
	if dates == "" {
		return 0, &ImportError{URL: url, Err: errors.New("webinar dates missing in A1")}
	}
	if title == "" {
		return 0, &ImportError{URL: url, Err: errors.New("webinar title missing in A2")}
	}

	now := s.now()
	rec := models.WebinarRecord{
		URL:        url,
		Title:      title,
		Dates:      dates,
		Year:       now.Year(),
		ImportedAt: now,
	}
	id, err := s.webinars.Add(ctx, rec)
	if err != nil {
		return 0, &ImportError{URL: url, Err: err}
	}

	s.log.Info().Int64("webinar_id", id).Str("title", title).Str("dates", dates).Msg("Webinar imported")
	return id, nil
}

// Open returns the document of an imported webinar together with its roster
func (s *Service) Open(ctx context.Context, rec models.WebinarRecord) (sheets.Document, []models.Attendee, error) {
	doc, err := s.opener.Open(ctx, rec.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	attendees, err := s.LoadRoster(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, attendees, nil
}

// LoadRoster reads the attendees. Rows without a name or a usable e-mail are
// logged and skipped.
func (s *Service) LoadRoster(ctx context.Context, doc sheets.Document) ([]models.Attendee, error) {
	rows, err := doc.Rows(ctx, s.cfg.ParticipantsWorksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	if len(rows) <= s.cfg.RosterFirstRow {
		return nil, nil
	}

	var attendees []models.Attendee
	for i, row := range rows[s.cfg.RosterFirstRow:] {
		a, err := parseAttendee(row)
		if err != nil {
			s.log.Error().Err(err).Int("row", s.cfg.RosterFirstRow+i+1).Msg("Skipping participant")
			continue
		}
		attendees = append(attendees, a)
	}
	return attendees, nil
}

func parseAttendee(row []string) (models.Attendee, error) {
	a := models.Attendee{
		FullName: strings.TrimSpace(get(row, 0)),
		Email:    strings.TrimSpace(get(row, 1)),
		Phone:    strings.TrimSpace(get(row, 2)),
	}
	if a.FullName == "" {
		return a, errors.New("no name")
	}
	if !strings.Contains(a.Email, "@") {
		return a, fmt.Errorf("invalid email %q for %s", a.Email, a.FullName)
	}
	return a, nil
}

func cell(rows [][]string, row, col int) string {
	if row >= len(rows) {
		return ""
	}
	return strings.TrimSpace(get(rows[row], col))
}

func get(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return row[col]
}
