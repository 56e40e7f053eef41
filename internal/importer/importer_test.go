package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinar-certs/internal/models"
	"webinar-certs/internal/sheets"
	"webinar-certs/internal/storage"
	"webinar-certs/internal/testutil"
)

const testURL = "https://docs.google.com/spreadsheets/d/abc123/edit"

type fakeOpener struct {
	docs map[string]sheets.Document
	err  error
}

func (o *fakeOpener) Open(_ context.Context, url string) (sheets.Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	doc, ok := o.docs[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return doc, nil
}

func participantsDoc() *testutil.MemoryDocument {
	doc := testutil.NewMemoryDocument("Вебинар")
	doc.SetRows(DefaultParticipantsWorksheet, [][]string{
		{"1-2 марта"},
		{"Грамматика"},
		{},
		{},
		{"ФИО", "email", "телефон"},
		{"Иванов Иван", "a@x.com", "+79000000001"},
		{"", "nobody@x.com"},
		{"Петров Петр", "not an email"},
		{" Сидоров Сидор ", " c@x.com "},
	})
	return doc
}

func newTestService(t *testing.T, opener sheets.Opener) (*Service, *storage.Webinars) {
	t.Helper()
	s, err := storage.NewStorage(filepath.Join(t.TempDir(), "certbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	svc := NewService(opener, s.Webinars(), Config{RosterFirstRow: DefaultRosterFirstRow}, now, zerolog.Nop())
	return svc, s.Webinars()
}

func TestImportFromURL(t *testing.T) {
	opener := &fakeOpener{docs: map[string]sheets.Document{testURL: participantsDoc()}}
	svc, webinars := newTestService(t, opener)
	ctx := context.Background()

	id, err := svc.ImportFromURL(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	rec, found, err := webinars.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Грамматика", rec.Title)
	assert.Equal(t, "1-2 марта", rec.Dates)
	assert.Equal(t, 2024, rec.Year)
	assert.Equal(t, testURL, rec.URL)

	again, err := svc.ImportFromURL(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestImportFromURL_Errors(t *testing.T) {
	noTitle := testutil.NewMemoryDocument("x")
	noTitle.SetRows(DefaultParticipantsWorksheet, [][]string{{"1-2 марта"}})
	noSheet := testutil.NewMemoryDocument("x")

	tests := []struct {
		name   string
		opener *fakeOpener
	}{
		{"open fails", &fakeOpener{err: errors.New("permission denied")}},
		{"missing worksheet", &fakeOpener{docs: map[string]sheets.Document{testURL: noSheet}}},
		{"missing title", &fakeOpener{docs: map[string]sheets.Document{testURL: noTitle}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, webinars := newTestService(t, tt.opener)
			ctx := context.Background()

			_, err := svc.ImportFromURL(ctx, testURL)
			var importErr *ImportError
			require.ErrorAs(t, err, &importErr)
			assert.Equal(t, testURL, importErr.URL)
			assert.NotNil(t, importErr.Err)

			list, err := webinars.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestImportError_Unwrap(t *testing.T) {
	err := error(&ImportError{URL: testURL, Err: sheets.ErrWorksheetNotFound})
	assert.ErrorIs(t, err, sheets.ErrWorksheetNotFound)
}

func TestLoadRoster(t *testing.T) {
	svc, _ := newTestService(t, &fakeOpener{})

	attendees, err := svc.LoadRoster(context.Background(), participantsDoc())
	require.NoError(t, err)
	assert.Equal(t, []models.Attendee{
		{FullName: "Иванов Иван", Email: "a@x.com", Phone: "+79000000001"},
		{FullName: "Сидоров Сидор", Email: "c@x.com"},
	}, attendees)
}

func TestLoadRoster_ShortSheet(t *testing.T) {
	svc, _ := newTestService(t, &fakeOpener{})
	doc := testutil.NewMemoryDocument("x")
	doc.SetRows(DefaultParticipantsWorksheet, [][]string{{"1-2 марта"}, {"Грамматика"}})

	attendees, err := svc.LoadRoster(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, attendees)
}

func TestOpen(t *testing.T) {
	opener := &fakeOpener{docs: map[string]sheets.Document{testURL: participantsDoc()}}
	svc, _ := newTestService(t, opener)

	doc, attendees, err := svc.Open(context.Background(), models.WebinarRecord{URL: testURL})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, attendees, 2)
}
