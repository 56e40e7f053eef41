package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCertificateRow(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  CertificateRow
	}{
		{
			name:  "full row sent",
			cells: []string{"Иванова Анна", "Ивановой Анне", "Анна", " anna@example.com ", "Здравствуйте, {name}!", "yes"},
			want: CertificateRow{
				FullName:      "Иванова Анна",
				InflectedName: "Ивановой Анне",
				DisplayName:   "Анна",
				Email:         "anna@example.com",
				Message:       "Здравствуйте, {name}!",
				Sent:          true,
			},
		},
		{
			name:  "marker is case insensitive",
			cells: []string{"a", "b", "c", "d", "e", " YES "},
			want:  CertificateRow{FullName: "a", InflectedName: "b", DisplayName: "c", Email: "d", Message: "e", Sent: true},
		},
		{
			name:  "trailing cells dropped",
			cells: []string{"Петров Иван", "", "", "ivan@example.com"},
			want:  CertificateRow{FullName: "Петров Иван", Email: "ivan@example.com"},
		},
		{
			name:  "other marker is unsent",
			cells: []string{"a", "b", "c", "d", "e", "no"},
			want:  CertificateRow{FullName: "a", InflectedName: "b", DisplayName: "c", Email: "d", Message: "e"},
		},
		{
			name: "empty",
			want: CertificateRow{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCertificateRow(tt.cells))
		})
	}
}

func TestCellsExcludeSentMarker(t *testing.T) {
	row := CertificateRow{FullName: "a", InflectedName: "b", DisplayName: "c", Email: "d", Message: "e", Sent: true}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, row.Cells())
	assert.Len(t, row.Cells(), len(CertificateHeader))
}

func TestIsCertificateHeader(t *testing.T) {
	assert.True(t, IsCertificateHeader(CertificateHeader))
	assert.True(t, IsCertificateHeader([]string{"full_name ", "inflected_name", "display_name", "email", "message", "sent"}))
	assert.False(t, IsCertificateHeader([]string{"full_name", "inflected_name"}))
	assert.False(t, IsCertificateHeader([]string{"Иванова Анна", "Ивановой Анне", "Анна", "anna@example.com", "hi"}))
}

func TestPersonalMessage(t *testing.T) {
	row := CertificateRow{FullName: "Иванова Анна", DisplayName: "Анна", Message: "Здравствуйте, {name}! {name}, спасибо."}
	assert.Equal(t, "Здравствуйте, Анна! Анна, спасибо.", row.PersonalMessage())

	row.DisplayName = ""
	assert.Equal(t, "Здравствуйте, Иванова Анна! Иванова Анна, спасибо.", row.PersonalMessage())
}

func TestFamilyAndGiven(t *testing.T) {
	tests := []struct {
		full   string
		family string
		given  string
	}{
		{"Иванова Анна Сергеевна", "Иванова", "Анна"},
		{"  Петров   Иван ", "Петров", "Иван"},
		{"Сидоров", "Сидоров", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		family, given := Attendee{FullName: tt.full}.FamilyAndGiven()
		assert.Equal(t, tt.family, family, tt.full)
		assert.Equal(t, tt.given, given, tt.full)
	}
}

func TestSameContent(t *testing.T) {
	a := WebinarRecord{ID: 1, URL: "u", Title: "t", Dates: "1 мая", Year: 2024}
	b := a
	b.ID = 7
	assert.True(t, a.SameContent(b))
	b.Dates = "2 мая"
	assert.False(t, a.SameContent(b))
}
