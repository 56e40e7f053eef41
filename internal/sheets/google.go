package sheets

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputRaw  = "RAW"
	insertDataRows = "INSERT_ROWS"
)

// Client opens documents with a service account key
type Client struct {
	srv *gsheets.Service
	log zerolog.Logger
}

// NewClient creates a Sheets API client from a service account key file.
// The document has to be shared with the service account e-mail.
func NewClient(ctx context.Context, keyFile string, log zerolog.Logger) (*Client, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(key, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	srv, err := gsheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{
		srv: srv,
		log: log.With().Str("component", "Sheets").Logger(),
	}, nil
}

// Open returns the document behind url
func (c *Client) Open(ctx context.Context, url string) (Document, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("spreadsheet_id", id).Msg("Opening document")
	return &GoogleDocument{srv: c.srv, id: id, log: c.log.With().Str("spreadsheet_id", id).Logger()}, nil
}

// GoogleDocument is a Document backed by the Sheets v4 API
type GoogleDocument struct {
	srv *gsheets.Service
	id  string
	log zerolog.Logger
}

func (d *GoogleDocument) Title(ctx context.Context) (string, error) {
	ss, err := d.srv.Spreadsheets.Get(d.id).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	return ss.Properties.Title, nil
}

func (d *GoogleDocument) Rows(ctx context.Context, worksheet string) ([][]string, error) {
	exists, err := d.hasWorksheet(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, worksheet)
	}

	resp, err := d.srv.Spreadsheets.Values.Get(d.id, quoteTitle(worksheet)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", worksheet, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (d *GoogleDocument) EnsureWorksheet(ctx context.Context, worksheet string, header []string) (bool, error) {
	exists, err := d.hasWorksheet(ctx, worksheet)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	d.log.Info().Str("worksheet", worksheet).Msg("Creating worksheet")
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{Title: worksheet},
			},
		}},
	}
	if _, err := d.srv.Spreadsheets.BatchUpdate(d.id, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("failed to add worksheet %s: %w", worksheet, err)
	}
	if len(header) > 0 {
		if err := d.AppendRow(ctx, worksheet, header); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (d *GoogleDocument) AppendRow(ctx context.Context, worksheet string, cells []string) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{toValues(cells)}}
	_, err := d.srv.Spreadsheets.Values.Append(d.id, quoteTitle(worksheet), vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to %s: %w", worksheet, err)
	}
	return nil
}

func (d *GoogleDocument) UpdateCell(ctx context.Context, worksheet string, row, col int, value string) error {
	rng := CellRange(worksheet, row, col)
	vr := &gsheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := d.srv.Spreadsheets.Values.Update(d.id, rng, vr).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (d *GoogleDocument) hasWorksheet(ctx context.Context, worksheet string) (bool, error) {
	ss, err := d.srv.Spreadsheets.Get(d.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == worksheet {
			return true, nil
		}
	}
	return false, nil
}

func toValues(cells []string) []interface{} {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return values
}
