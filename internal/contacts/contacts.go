// Package contacts exports webinar participants as vCards for import into an
// address book.
package contacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/emersion/go-vcard"

	"webinar-certs/internal/models"
)

// GroupName labels the participants of one webinar:
// first letter of the title, dates without spaces, year. "Грамматика",
// "1-2 марта", 2024 gives "Г1-2марта 2024".
func GroupName(w models.WebinarRecord) string {
	var initial string
	for _, r := range strings.TrimSpace(w.Title) {
		initial = string(unicode.ToUpper(r))
		break
	}
	dates := strings.Join(strings.Fields(w.Dates), "")
	return initial + dates + " " + strconv.Itoa(w.Year)
}

// Card builds the vCard of one attendee. The group goes into the given name
// and the organisation so that the address book sorts and filters by it.
func Card(a models.Attendee, group string) vcard.Card {
	family, given := a.FamilyAndGiven()
	last := strings.TrimSpace(given + " " + family)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldVersion, "3.0")
	card.SetName(&vcard.Name{FamilyName: last, GivenName: group})
	card.SetValue(vcard.FieldFormattedName, strings.TrimSpace(group+" "+last))
	card.SetValue(vcard.FieldOrganization, group)
	if a.Email != "" {
		card.AddValue(vcard.FieldEmail, a.Email)
	}
	if a.Phone != "" {
		card.AddValue(vcard.FieldTelephone, a.Phone)
	}
	return card
}

// Write encodes one card per attendee
func Write(w io.Writer, attendees []models.Attendee, group string) error {
	enc := vcard.NewEncoder(w)
	for _, a := range attendees {
		if err := enc.Encode(Card(a, group)); err != nil {
			return fmt.Errorf("failed to encode contact %s: %w", a.FullName, err)
		}
	}
	return nil
}

// SaveFile writes the cards to dir/<group>.vcf and returns the path
func SaveFile(dir string, attendees []models.Attendee, group string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create contacts dir: %w", err)
	}
	path := filepath.Join(dir, group+".vcf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create contacts file: %w", err)
	}
	if err := Write(f, attendees, group); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write contacts file: %w", err)
	}
	return path, nil
}
