package pipeline

import (
	"context"
	"fmt"

	"webinar-certs/internal/models"
)

// Fill creates the certificate worksheet and writes one row per attendee.
// A worksheet that already has at least as many rows as attendees is left
// alone; one with fewer (but some) rows is refused with *PartialFillError.
func (p *Pipeline) Fill(ctx context.Context) error {
	log := p.log.With().Str("stage", "fill").Logger()

	created, err := p.deps.Document.EnsureWorksheet(ctx, p.settings.Worksheet, models.CertificateHeader)
	if err != nil {
		return fmt.Errorf("failed to prepare certificate worksheet: %w", err)
	}
	if created {
		log.Info().Str("worksheet", p.settings.Worksheet).Msg("Certificate worksheet created")
	}

	rows, _, err := p.worksheetRows(ctx)
	if err != nil {
		return err
	}

	expected := len(p.settings.Attendees)
	switch {
	case len(rows) == expected:
		log.Info().Int("rows", len(rows)).Msg("Already filled")
		return nil
	case len(rows) > expected:
		log.Warn().Int("rows", len(rows)).Int("attendees", expected).Msg("Already filled but there are more rows than attendees, needs checking")
		return nil
	case len(rows) > 0:
		return &PartialFillError{Rows: len(rows), Expected: expected}
	}

	for i, a := range p.settings.Attendees {
		if i > 0 {
			if err := p.deps.Sleeper.Sleep(ctx, p.settings.FillInterval); err != nil {
				return err
			}
		}

		row, err := p.certificateRow(ctx, a)
		if err != nil {
			return err
		}
		if err := p.deps.Document.AppendRow(ctx, p.settings.Worksheet, row.Cells()); err != nil {
			return fmt.Errorf("failed to append row for %s: %w", a.FullName, err)
		}
		log.Info().Str("fio", a.FullName).Str("inflected", row.InflectedName).Msg("Row written")
	}

	log.Info().Int("rows", expected).Msg("Filling done")
	return nil
}

// certificateRow builds the row of one attendee. A failed name lookup is not
// fatal: the row is written with empty names and the operator fixes it in the
// sheet before generating.
func (p *Pipeline) certificateRow(ctx context.Context, a models.Attendee) (models.CertificateRow, error) {
	row := models.CertificateRow{
		FullName: a.FullName,
		Email:    a.Email,
		Message:  p.settings.MessageTemplate,
	}

	res, err := p.deps.Resolver.Resolve(ctx, a.FullName)
	if err != nil {
		if ctx.Err() != nil {
			return row, ctx.Err()
		}
		p.log.Error().Err(err).Str("fio", a.FullName).Msg("Unable to morph name")
		return row, nil
	}
	row.InflectedName = res.Dative
	row.DisplayName = res.GivenName
	return row, nil
}
