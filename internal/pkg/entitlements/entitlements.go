// Package entitlements decides what a buyer may actually download. The
// Entitlement row grants access to a beat; the license bought with it decides
// which file formats that access covers.
package entitlements

import (
	"strings"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// Format is a downloadable artifact kind.
type Format string

const (
	FormatMP3   Format = "mp3"
	FormatWAV   Format = "wav"
	FormatStems Format = "stems"
)

// ParseFormat normalizes a request parameter into a Format. Empty input
// means the baseline MP3.
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mp3":
		return FormatMP3, true
	case "wav":
		return FormatWAV, true
	case "stems", "trackout":
		return FormatStems, true
	default:
		return "", false
	}
}

// AllowedFormats returns which artifact kinds a license covers. MP3 is always
// included; WAV and stems depend on the catalog row's capability flags.
func AllowedFormats(license *models.License) (mp3, wav, stems bool) {
	if license == nil {
		return true, false, false
	}
	return true, license.AllowWAV, license.AllowStems
}

// Covers reports whether the license includes the requested format.
func Covers(license *models.License, format Format) bool {
	mp3, wav, stems := AllowedFormats(license)
	switch format {
	case FormatMP3:
		return mp3
	case FormatWAV:
		return wav
	case FormatStems:
		return stems
	default:
		return false
	}
}
