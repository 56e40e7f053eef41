package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinar-certs/internal/certificate"
	"webinar-certs/internal/mail"
	"webinar-certs/internal/models"
	"webinar-certs/internal/testutil"
)

type recordingNotifier struct {
	phones []string
	err    error
}

func (n *recordingNotifier) SendCertificate(_ context.Context, phone, _, _ string) error {
	n.phones = append(n.phones, phone)
	return n.err
}

func assertGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, actual)
}

func TestSend_HaltsOnTransportErrorAndResumes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.pipeline(t).Fill(ctx))

	failing := testutil.NewRecordingMailer(2)
	e.deps.Mailer = failing
	err := e.pipeline(t).Send(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, failing.Err)
	assert.Equal(t, []string{"a@x.com"}, failing.Recipients())
	assertGolden(t, "send_halts_on_transport_error", e.doc.Dump(testWorksheet))

	healthy := testutil.NewRecordingMailer(0)
	e.deps.Mailer = healthy
	require.NoError(t, e.pipeline(t).Send(ctx))
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, healthy.Recipients())
	assertGolden(t, "send_resumed", e.doc.Dump(testWorksheet))

	again := testutil.NewRecordingMailer(0)
	e.deps.Mailer = again
	require.NoError(t, e.pipeline(t).Send(ctx))
	assert.Zero(t, again.Calls())
}

func TestSend_Message(t *testing.T) {
	e := newEnv(t)
	e.settings.Attendees = e.settings.Attendees[:1]
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))
	require.NoError(t, p.Send(ctx))

	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	msg := sent[0].Message
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, []string{"archive@example.com"}, msg.Bcc)
	assert.Equal(t, "Грамматика", msg.Subject)
	assert.Equal(t, "Здравствуйте, Иван! Благодарю вас за участие.", msg.Body)

	require.Len(t, msg.Attachments, 1)
	staged := msg.Attachments[0]
	assert.Equal(t, StagedFileName, filepath.Base(staged))
	_, err := os.Stat(filepath.Dir(staged))
	assert.True(t, errors.Is(err, os.ErrNotExist), "staging dir must be removed")

	original, err := os.ReadFile(certificate.Path(e.settings.CertDir, "Иванову Ивану", "1-2 марта", 2024))
	require.NoError(t, err)
	assert.Equal(t, original, sent[0].Attachments[0])
	assert.Equal(t, 1, e.renderer.Total(), "send renders missing certificates")
}

func TestSend_StagingRemovedOnFailure(t *testing.T) {
	e := newEnv(t)
	e.settings.Attendees = e.settings.Attendees[:1]
	mailer := &stagingSpy{}
	e.deps.Mailer = mailer
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))

	err := p.Send(ctx)
	require.Error(t, err)
	require.NotEmpty(t, mailer.staged)
	_, statErr := os.Stat(filepath.Dir(mailer.staged))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.False(t, models.ParseCertificateRow(e.rows(t)[1]).Sent)
}

type stagingSpy struct {
	staged string
}

func (s *stagingSpy) Send(_ context.Context, msg mail.Message) error {
	s.staged = msg.Attachments[0]
	return errors.New("connection reset")
}

func TestSend_Pacing(t *testing.T) {
	e := newEnv(t)
	e.settings.SendInterval = 5 * time.Second
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))
	fillPauses := len(e.sleeper.Pauses())

	require.NoError(t, p.Send(ctx))
	pauses := e.sleeper.Pauses()[fillPauses:]
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, pauses)
}

func TestSend_MarkFailureStops(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.pipeline(t).Fill(ctx))

	e.doc.FailUpdate = errors.New("quota exceeded")
	err := e.pipeline(t).Send(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Equal(t, 1, e.mailer.Calls())
}

func TestSend_SkipsRowsWithoutEmail(t *testing.T) {
	e := newEnv(t)
	e.doc.SetRows(testWorksheet, [][]string{
		models.CertificateHeader,
		{"Иванов Иван", "Иванову Ивану", "Иван", "", "hi {name}"},
		{"Петров Петр", "Петрову Петру", "Петр", "b@x.com", "hi {name}"},
	})

	require.NoError(t, e.pipeline(t).Send(context.Background()))
	assert.Equal(t, []string{"b@x.com"}, e.mailer.Recipients())

	rows := e.rows(t)
	assert.False(t, models.ParseCertificateRow(rows[1]).Sent)
	assert.True(t, models.ParseCertificateRow(rows[2]).Sent)
}

func TestSend_WorksheetWithoutHeader(t *testing.T) {
	e := newEnv(t)
	e.doc.SetRows(testWorksheet, [][]string{
		{"Иванов Иван", "Иванову Ивану", "Иван", "a@x.com", "hi {name}", "yes"},
		{"Петров Петр", "Петрову Петру", "Петр", "b@x.com", "hi {name}"},
	})

	require.NoError(t, e.pipeline(t).Send(context.Background()))
	assert.Equal(t, []string{"b@x.com"}, e.mailer.Recipients())
	assert.True(t, models.ParseCertificateRow(e.rows(t)[1]).Sent)
}

func TestSend_NotifierFailureIsRowScoped(t *testing.T) {
	e := newEnv(t)
	notifier := &recordingNotifier{err: errors.New("not on whatsapp")}
	e.deps.Notifier = notifier
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))

	require.NoError(t, p.Send(ctx))
	assert.Equal(t, []string{"+7 900 000-00-01", "+7 900 000-00-03"}, notifier.phones)
	assert.Len(t, e.mailer.Recipients(), 3)
}

func TestSend_WarnsWithoutBcc(t *testing.T) {
	var logs bytes.Buffer
	e := newEnv(t)
	e.deps.Log = zerolog.New(&logs)
	e.settings.Attendees = e.settings.Attendees[:1]
	e.settings.Bcc = nil
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))
	require.NoError(t, p.Send(ctx))

	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Message.Bcc)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "No BCC addresses configured")
}

func TestSend_NoBccWarningWhenConfigured(t *testing.T) {
	var logs bytes.Buffer
	e := newEnv(t)
	e.deps.Log = zerolog.New(&logs)
	e.settings.Attendees = e.settings.Attendees[:1]
	p := e.pipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Fill(ctx))
	require.NoError(t, p.Send(ctx))

	assert.NotContains(t, logs.String(), "No BCC addresses configured")
}
