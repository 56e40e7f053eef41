package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"webinar-certs/internal/certificate"
	"webinar-certs/internal/models"
)

// Generate renders the certificate of every worksheet row that does not have
// one on disk yet. The worksheet is not modified.
func (p *Pipeline) Generate(ctx context.Context) error {
	log := p.log.With().Str("stage", "generate").Logger()

	rows, _, err := p.worksheetRows(ctx)
	if err != nil {
		return err
	}

	rendered := 0
	for _, row := range rows {
		path, fresh, err := p.ensureCertificate(ctx, row)
		if err != nil {
			return err
		}
		if fresh {
			rendered++
		}
		if p.deps.Archiver != nil {
			if err := p.deps.Archiver.Archive(ctx, path); err != nil {
				return fmt.Errorf("failed to archive certificate of %s: %w", row.FullName, err)
			}
		}
		log.Debug().Str("fio", row.FullName).Str("path", path).Bool("rendered", fresh).Msg("Certificate ready")
	}

	log.Info().Int("rows", len(rows)).Int("rendered", rendered).Msg("Generating done")
	return nil
}

// certificateName is the name printed on the certificate
func certificateName(row models.CertificateRow) string {
	if row.InflectedName != "" {
		return row.InflectedName
	}
	return row.FullName
}

// ensureCertificate returns the certificate path of row, rendering it only
// when the file is missing.
func (p *Pipeline) ensureCertificate(ctx context.Context, row models.CertificateRow) (string, bool, error) {
	name := certificateName(row)
	w := p.settings.Webinar
	path := certificate.Path(p.settings.CertDir, name, w.Dates, w.Year)

	_, err := os.Stat(path)
	if err == nil {
		return path, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("failed to check certificate %s: %w", path, err)
	}

	rendered, err := p.deps.Renderer.Render(ctx, name, w.Dates, w.Year, p.settings.CertDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to render certificate of %s: %w", row.FullName, err)
	}
	return rendered, true, nil
}
