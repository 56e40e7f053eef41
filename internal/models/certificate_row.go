package models

import "strings"

// Column positions in the certificate worksheet (1-based, as the sheet API uses).
const (
	ColumnFullName      = 1
	ColumnInflectedName = 2
	ColumnDisplayName   = 3
	ColumnEmail         = 4
	ColumnMessage       = 5
	ColumnSent          = 6
)

// SentMarker is written into ColumnSent once the certificate email went out.
const SentMarker = "yes"

// NamePlaceholder is replaced by the display name when the message is sent.
const NamePlaceholder = "{name}"

// CertificateHeader is the first row of a freshly created certificate worksheet.
var CertificateHeader = []string{"full_name", "inflected_name", "display_name", "email", "message"}

// CertificateRow is one attendee's line in the certificate worksheet
type CertificateRow struct {
	FullName      string
	InflectedName string
	DisplayName   string
	Email         string
	Message       string
	Sent          bool
}

// Cells returns the five cells appended for a new row. The sent marker is
// never part of an append; it is set later with a single cell update.
func (r CertificateRow) Cells() []string {
	return []string{r.FullName, r.InflectedName, r.DisplayName, r.Email, r.Message}
}

// ParseCertificateRow reads a worksheet row. Short rows are padded, since the
// sheet API drops trailing empty cells.
func ParseCertificateRow(cells []string) CertificateRow {
	get := func(col int) string {
		if col-1 < len(cells) {
			return cells[col-1]
		}
		return ""
	}
	return CertificateRow{
		FullName:      get(ColumnFullName),
		InflectedName: get(ColumnInflectedName),
		DisplayName:   get(ColumnDisplayName),
		Email:         strings.TrimSpace(get(ColumnEmail)),
		Message:       get(ColumnMessage),
		Sent:          strings.EqualFold(strings.TrimSpace(get(ColumnSent)), SentMarker),
	}
}

// IsCertificateHeader reports whether cells is the header row.
func IsCertificateHeader(cells []string) bool {
	if len(cells) < len(CertificateHeader) {
		return false
	}
	for i, h := range CertificateHeader {
		if strings.TrimSpace(cells[i]) != h {
			return false
		}
	}
	return true
}

// PersonalMessage substitutes the display name into the stored template.
// Rows whose morphology failed have no display name; the full name is used then.
func (r CertificateRow) PersonalMessage() string {
	name := r.DisplayName
	if name == "" {
		name = r.FullName
	}
	return strings.ReplaceAll(r.Message, NamePlaceholder, name)
}
