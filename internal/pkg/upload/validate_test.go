package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAudioBySniffAcceptsRealAudio(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		wantMime string
	}{
		{
			name:     "id3 tagged mp3",
			filename: "master.mp3",
			head:     append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...),
			wantMime: "audio/mpeg",
		},
		{
			name:     "riff wave",
			filename: "master.wav",
			head:     append([]byte("RIFF\x24\x08\x00\x00WAVEfmt "), make([]byte, 64)...),
			wantMime: "audio/wave",
		},
		{
			name:     "ogg container",
			filename: "master.ogg",
			head:     append([]byte("OggS\x00\x02\x00\x00"), make([]byte, 64)...),
			wantMime: "application/ogg",
		},
		{
			name:     "aiff sniffs as aiff",
			filename: "master.aiff",
			head:     append([]byte("FORM\x00\x00\x08\x24AIFFCOMM"), make([]byte, 64)...),
			wantMime: "audio/aiff",
		},
		{
			// FLAC has no entry in the sniff table and comes back as
			// octet-stream; the extension whitelist already passed.
			name:     "flac falls back to octet-stream",
			filename: "master.flac",
			head:     append([]byte{0x66, 0x4C, 0x61, 0x43, 0x00, 0x00, 0x00, 0x22}, make([]byte, 64)...),
			wantMime: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := ValidateAudioBySniff(tt.filename, tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestValidateAudioBySniffRejects(t *testing.T) {
	id3 := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

	// Extension outside the whitelist, no matter what the bytes say.
	_, err := ValidateAudioBySniff("master.exe", id3)
	assert.Error(t, err)
	_, err = ValidateAudioBySniff("master.txt", id3)
	assert.Error(t, err)

	// Scriptable content behind an audio extension.
	_, err = ValidateAudioBySniff("master.wav", []byte("<html><script>alert(1)</script></html>"))
	assert.Error(t, err)
	_, err = ValidateAudioBySniff("master.mp3", []byte("<?xml version=\"1.0\"?><svg xmlns=\"http://www.w3.org/2000/svg\"/>"))
	assert.Error(t, err)
}

func TestValidatePreviewBySniff(t *testing.T) {
	id3 := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

	mime, err := ValidatePreviewBySniff("preview.mp3", id3)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mime)

	// Valid audio formats that are not MP3 still get refused; the storefront
	// player only speaks MP3.
	_, err = ValidatePreviewBySniff("preview.wav", append([]byte("RIFF\x24\x08\x00\x00WAVEfmt "), make([]byte, 64)...))
	assert.Error(t, err)
	_, err = ValidatePreviewBySniff("preview.ogg", append([]byte("OggS\x00\x02\x00\x00"), make([]byte, 64)...))
	assert.Error(t, err)

	// Scriptable content behind the right extension.
	_, err = ValidatePreviewBySniff("preview.mp3", []byte("<html><script>alert(1)</script></html>"))
	assert.Error(t, err)
}

func TestValidateCoverBySniffAcceptsRealImages(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		wantMime string
	}{
		{
			name:     "png",
			filename: "cover.png",
			head:     append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...),
			wantMime: "image/png",
		},
		{
			name:     "jpeg",
			filename: "cover.jpg",
			head:     append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...),
			wantMime: "image/jpeg",
		},
		{
			name:     "webp",
			filename: "cover.webp",
			head:     append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 64)...),
			wantMime: "image/webp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := ValidateCoverBySniff(tt.filename, tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestValidateCoverBySniffRejects(t *testing.T) {
	pngHead := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)

	// Extensions outside the whitelist.
	_, err := ValidateCoverBySniff("cover.gif", append([]byte("GIF89a"), make([]byte, 64)...))
	assert.Error(t, err)
	_, err = ValidateCoverBySniff("cover.svg", []byte("<svg xmlns=\"http://www.w3.org/2000/svg\"/>"))
	assert.Error(t, err)
	_, err = ValidateCoverBySniff("cover", pngHead)
	assert.Error(t, err)

	// SVG smuggled behind an allowed extension must stay blocked; a browser
	// would execute scripts inside it.
	_, err = ValidateCoverBySniff("cover.png", []byte("<?xml version=\"1.0\"?><svg onload=\"alert(1)\"/>"))
	assert.Error(t, err)
	_, err = ValidateCoverBySniff("cover.jpg", []byte("<html><body>not an image</body></html>"))
	assert.Error(t, err)
}

func TestRejectScriptable(t *testing.T) {
	assert.True(t, rejectScriptable("text/html; charset=utf-8"))
	assert.True(t, rejectScriptable("text/xml; charset=utf-8"))
	assert.True(t, rejectScriptable("image/svg+xml"))
	assert.False(t, rejectScriptable("image/png"))
	assert.False(t, rejectScriptable("audio/mpeg"))
	assert.False(t, rejectScriptable("application/octet-stream"))
}
