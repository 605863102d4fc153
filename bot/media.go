package bot

import (
	"path/filepath"
	"strings"
)

// mediaExtensions is the transcription format allow-list.
var mediaExtensions = map[string]struct{}{
	".m4a":  {},
	".mp3":  {},
	".webm": {},
	".mp4":  {},
	".mpga": {},
	".wav":  {},
	".mpeg": {},
}

// isMediaFile reports whether the file name carries a supported audio or
// video extension.
func isMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := mediaExtensions[ext]
	return ok
}
