package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ext is the certificate file extension
const Ext = ".jpeg"

// Path returns where the certificate for (name, dates, year) lives in dir.
// The file name is derived from the content only, so the same person on the
// same webinar always maps to the same file whatever their row number.
func Path(dir, name, dates string, year int) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	dates = norm.NFC.String(strings.TrimSpace(dates))

	sum := sha256.Sum256([]byte(name + "\x00" + dates + "\x00" + strconv.Itoa(year)))
	return filepath.Join(dir, slug(name)+"-"+hex.EncodeToString(sum[:])[:12]+Ext)
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	if strings.Trim(b.String(), "_") == "" {
		return "unnamed"
	}
	return b.String()
}
