package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedAudioExt = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aif":  true,
	".aiff": true,
	".ogg":  true,
}

var allowedAudioMime = map[string]bool{
	"audio/mpeg":      true,
	"audio/mp3":       true,
	"audio/wave":      true,
	"audio/wav":       true,
	"audio/x-wav":     true,
	"audio/flac":      true,
	"audio/x-flac":    true,
	"audio/aiff":      true,
	"audio/x-aiff":    true,
	"audio/ogg":       true,
	"application/ogg": true,
}

var allowedCoverExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedCoverMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ValidateAudioBySniff checks the filename extension and the first bytes of
// an uploaded master against the audio whitelist. Returns the detected mime
// or an error.
func ValidateAudioBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExt[ext] {
		return "", errors.New("only MP3, WAV, FLAC, AIFF and OGG masters are supported")
	}

	detected := http.DetectContentType(head)
	if rejectScriptable(detected) {
		return "", errors.New("file content does not look like audio")
	}

	// WAV/AIFF and some MP3 encodings come back as octet-stream from the
	// sniffer; the extension whitelist already passed, so allow those.
	if detected == "application/octet-stream" {
		return detected, nil
	}
	if allowedAudioMime[detected] {
		return detected, nil
	}
	// ID3v2-tagged MP3s sniff as the tag container.
	if strings.HasPrefix(detected, "audio/") {
		return detected, nil
	}

	return "", errors.New("the audio file type is not supported")
}

// ValidatePreviewBySniff checks an uploaded preview track. Previews play
// directly in the storefront, so only MP3 is accepted.
func ValidatePreviewBySniff(filename string, head []byte) (string, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".mp3" {
		return "", errors.New("previews must be MP3")
	}
	return ValidateAudioBySniff(filename, head)
}

// ValidateCoverBySniff checks an uploaded cover image the same way. SVG and
// anything XML-ish stays blocked.
func ValidateCoverBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedCoverExt[ext] {
		return "", errors.New("only JPG, PNG and WEBP covers are supported")
	}

	detected := http.DetectContentType(head)
	if rejectScriptable(detected) {
		return "", errors.New("file content does not look like an image")
	}
	if detected == "application/octet-stream" && allowedCoverExt[ext] {
		return detected, nil
	}
	if allowedCoverMime[detected] {
		return detected, nil
	}

	return "", errors.New("the cover file type is not supported")
}

// rejectScriptable blocks content types a browser would execute, regardless
// of the claimed extension.
func rejectScriptable(detected string) bool {
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return true
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return true
	}
	return false
}
