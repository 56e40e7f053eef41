// Package whatsapp sends certificates to attendees over WhatsApp.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// ErrNotLoggedIn means no device is paired yet
var ErrNotLoggedIn = errors.New("whatsapp: not logged in, run `certbot whatsapp login` first")

// ErrNotOnWhatsApp means the phone number has no WhatsApp account
var ErrNotOnWhatsApp = errors.New("whatsapp: number is not registered")

type Config struct {
	DataDir string
}

type Service struct {
	client *whatsmeow.Client
	cfg    *Config
	log    zerolog.Logger
}

// NewService opens the session store in cfg.DataDir
func NewService(ctx context.Context, cfg *Config, log zerolog.Logger) (*Service, error) {
	logger := log.With().Str("component", "WhatsApp").Logger()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	service := &Service{
		client: client,
		cfg:    cfg,
		log:    logger,
	}
	client.AddEventHandler(service.eventHandler)

	return service, nil
}

// NormalizePhoneNumber strips formatting and brings Russian numbers to the
// international form: 8 (900) 123-45-67 -> 79001234567
func NormalizePhoneNumber(phoneNumber string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phoneNumber = b.String()

	if strings.HasPrefix(phoneNumber, "8") && len(phoneNumber) == 11 {
		phoneNumber = "7" + phoneNumber[1:]
	}
	if strings.HasPrefix(phoneNumber, "9") && len(phoneNumber) == 10 {
		phoneNumber = "7" + phoneNumber
	}
	return phoneNumber
}

// Login pairs a new device by printing a QR code to out. It returns once the
// pairing finishes; an already paired device just connects.
func (s *Service) Login(ctx context.Context, out io.Writer) error {
	if s.client.Store.ID != nil {
		return s.connect()
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get qr channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			q, err := qrcode.New(evt.Code, qrcode.Medium)
			if err != nil {
				fmt.Fprintf(out, "QR Code: %s\n", evt.Code)
				continue
			}
			fmt.Fprintln(out, "\n"+q.ToSmallString(false))
			fmt.Fprintln(out, "Scan the QR code with WhatsApp: Settings > Linked Devices > Link a Device")
		case "success":
			s.log.Info().Msg("Device paired")
			return nil
		default:
			s.log.Info().Str("event", evt.Event).Msg("Login event")
		}
	}
	if s.client.Store.ID == nil {
		return errors.New("whatsapp: pairing did not complete")
	}
	return nil
}

// Connect connects a paired device
func (s *Service) Connect() error {
	if s.client.Store.ID == nil {
		return ErrNotLoggedIn
	}
	return s.connect()
}

func (s *Service) connect() error {
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendCertificate sends the image at path with caption to phoneNumber
func (s *Service) SendCertificate(ctx context.Context, phoneNumber, caption, path string) error {
	jid, err := s.resolve(ctx, phoneNumber)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	uploaded, err := s.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload certificate: %w", err)
	}

	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(http.DetectContentType(data)),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	}

	s.log.Debug().Str("jid", jid.String()).Msg("Sending certificate")
	sent, err := s.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid, err)
	}
	s.log.Info().Str("jid", jid.String()).Str("message_id", sent.ID).Msg("Certificate sent")
	return nil
}

// resolve checks that the number is on WhatsApp and returns the JID WhatsApp
// reports for it
func (s *Service) resolve(ctx context.Context, phoneNumber string) (types.JID, error) {
	phoneNumber = NormalizePhoneNumber(phoneNumber)
	if phoneNumber == "" {
		return types.JID{}, fmt.Errorf("%w: empty phone number", ErrNotOnWhatsApp)
	}

	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phoneNumber})
	if err != nil {
		return types.JID{}, fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return types.JID{}, fmt.Errorf("%w: %s", ErrNotOnWhatsApp, phoneNumber)
	}
	return resp[0].JID, nil
}

func (s *Service) eventHandler(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}
