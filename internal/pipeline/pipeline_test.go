package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinar-certs/internal/models"
	"webinar-certs/internal/morph"
	"webinar-certs/internal/testutil"
)

const testWorksheet = "сертификаты"

type fakeResolver struct {
	answers map[string]morph.Result
	calls   map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		answers: map[string]morph.Result{
			"Иванов Иван":   {FullName: "Иванов Иван", Dative: "Иванову Ивану", GivenName: "Иван"},
			"Петров Петр":   {FullName: "Петров Петр", Dative: "Петрову Петру", GivenName: "Петр"},
			"Сидоров Сидор": {FullName: "Сидоров Сидор", Dative: "Сидорову Сидору", GivenName: "Сидор"},
		},
		calls: map[string]int{},
	}
}

func (r *fakeResolver) Resolve(_ context.Context, fullName string) (morph.Result, error) {
	r.calls[fullName]++
	res, ok := r.answers[fullName]
	if !ok {
		return morph.Result{}, &morph.ServiceError{Status: 496, Message: "Не найдено русских слов."}
	}
	return res, nil
}

func threeAttendees() []models.Attendee {
	return []models.Attendee{
		{FullName: "Иванов Иван", Email: "a@x.com", Phone: "+7 900 000-00-01"},
		{FullName: "Петров Петр", Email: "b@x.com"},
		{FullName: "Сидоров Сидор", Email: "c@x.com", Phone: "+7 900 000-00-03"},
	}
}

type env struct {
	doc      *testutil.MemoryDocument
	resolver *fakeResolver
	renderer *testutil.CountingRenderer
	mailer   *testutil.RecordingMailer
	sleeper  *testutil.FakeSleeper
	deps     Deps
	settings Settings
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		doc:      testutil.NewMemoryDocument("Грамматика"),
		resolver: newFakeResolver(),
		renderer: testutil.NewCountingRenderer(),
		mailer:   testutil.NewRecordingMailer(0),
		sleeper:  &testutil.FakeSleeper{},
	}
	e.deps = Deps{
		Document: e.doc,
		Resolver: e.resolver,
		Renderer: e.renderer,
		Mailer:   e.mailer,
		Sleeper:  e.sleeper,
		Log:      zerolog.Nop(),
	}
	e.settings = Settings{
		Webinar: models.WebinarRecord{
			ID:    7,
			Title: "Грамматика",
			Dates: "1-2 марта",
			Year:  2024,
		},
		Attendees: threeAttendees(),
		Worksheet: testWorksheet,
		CertDir:   t.TempDir(),
		Bcc:       []string{"archive@example.com"},
	}
	return e
}

func (e *env) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(e.deps, e.settings)
	require.NoError(t, err)
	return p
}

func (e *env) rows(t *testing.T) [][]string {
	t.Helper()
	rows, err := e.doc.Rows(context.Background(), testWorksheet)
	require.NoError(t, err)
	return rows
}

func TestNew_Validation(t *testing.T) {
	e := newEnv(t)

	deps := e.deps
	deps.Document = nil
	_, err := New(deps, e.settings)
	require.Error(t, err)

	deps = e.deps
	deps.Mailer = nil
	_, err = New(deps, e.settings)
	require.Error(t, err)

	settings := e.settings
	settings.CertDir = ""
	_, err = New(e.deps, settings)
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	e := newEnv(t)
	e.settings.Worksheet = ""
	p := e.pipeline(t)

	assert.Equal(t, DefaultWorksheet, p.settings.Worksheet)
	assert.Equal(t, DefaultMessageTemplate, p.settings.MessageTemplate)
	assert.Equal(t, time.Second, p.settings.FillInterval)
	assert.Equal(t, 3*time.Second, p.settings.SendInterval)
}

func TestPartialFillError(t *testing.T) {
	err := error(&PartialFillError{Rows: 1, Expected: 3})
	assert.Equal(t, "certificate worksheet is partially filled: 1 of 3 rows", err.Error())

	var pfe *PartialFillError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, 3, pfe.Expected)
}

func TestRun(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.pipeline(t).Run(context.Background()))

	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, e.mailer.Recipients())
	assert.Equal(t, 3, e.renderer.Total())
	for _, r := range e.rows(t)[1:] {
		assert.True(t, models.ParseCertificateRow(r).Sent)
	}
}

func TestRun_StopsOnPartialFill(t *testing.T) {
	e := newEnv(t)
	e.doc.SetRows(testWorksheet, [][]string{models.CertificateHeader, {"Иванов Иван", "", "", "a@x.com", "hi"}})

	err := e.pipeline(t).Run(context.Background())
	var pfe *PartialFillError
	require.ErrorAs(t, err, &pfe)
	assert.Zero(t, e.renderer.Total())
	assert.Zero(t, e.mailer.Calls())
}

func TestTimerSleeper_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := timerSleeper{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
