package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"

	"webinar-certs/internal/mail"
)

// SentMail is a message captured by RecordingMailer together with the
// attachment contents read at send time.
type SentMail struct {
	Message     mail.Message
	Attachments [][]byte
}

// RecordingMailer records messages instead of sending them
type RecordingMailer struct {
	mu    sync.Mutex
	sent  []SentMail
	calls int

	// FailOn makes the n-th Send call (1-based) return Err
	FailOn int
	Err    error
}

// NewRecordingMailer creates a mailer that fails on the failOn-th call
// (0 never fails)
func NewRecordingMailer(failOn int) *RecordingMailer {
	return &RecordingMailer{FailOn: failOn, Err: fmt.Errorf("smtp: 421 service not available")}
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.FailOn > 0 && m.calls == m.FailOn {
		return m.Err
	}

	rec := SentMail{Message: msg}
	for _, path := range msg.Attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		rec.Attachments = append(rec.Attachments, data)
	}
	m.sent = append(m.sent, rec)
	return nil
}

// Sent returns the successfully sent messages in order
func (m *RecordingMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// Recipients returns the To address of every sent message
func (m *RecordingMailer) Recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Message.To)
	}
	return out
}

// Calls returns the number of Send calls, failed ones included
func (m *RecordingMailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
