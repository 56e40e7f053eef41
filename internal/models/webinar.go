package models

import "time"

// WebinarRecord is an imported webinar. Two records with the same URL, Title,
// Dates and Year are the same webinar.
type WebinarRecord struct {
	ID         int64     `json:"id" yaml:"id"`
	URL        string    `json:"url" yaml:"url"`
	Title      string    `json:"title" yaml:"title"`
	Dates      string    `json:"dates" yaml:"dates"`
	Year       int       `json:"year" yaml:"year"`
	ImportedAt time.Time `json:"imported_at,omitempty" yaml:"imported_at,omitempty"`
}

// SameContent reports whether two records describe the same webinar, ignoring
// the store-assigned fields.
func (w WebinarRecord) SameContent(other WebinarRecord) bool {
	return w.URL == other.URL &&
		w.Title == other.Title &&
		w.Dates == other.Dates &&
		w.Year == other.Year
}

// NameMorph maps a nominative full name to its dative form
type NameMorph struct {
	Name          string `json:"name"`
	InflectedName string `json:"inflected_name"`
}
