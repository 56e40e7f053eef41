package models

import "strings"

// Attendee is one participant read from the roster worksheet
type Attendee struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// FamilyAndGiven splits a "Family Given Patronymic" full name.
// Missing parts come back empty.
func (a Attendee) FamilyAndGiven() (family, given string) {
	parts := strings.Fields(a.FullName)
	if len(parts) > 0 {
		family = parts[0]
	}
	if len(parts) > 1 {
		given = parts[1]
	}
	return family, given
}
