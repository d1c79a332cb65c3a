package meta

import (
	"fmt"
	"strings"

	"github.com/franz/xc-fetch/internal/xcid"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultAudioExtension is used when the record announces no file name
	DefaultAudioExtension = "wav"

	reservedChars = `<>:"/\|?*`
)

// BaseName builds "XC<id> - <en> - <gen> <sp>" with reserved path
// characters replaced. Different recordings may collide; that is accepted.
func BaseName(id xcid.ID, englishName, genus, species string) string {
	return SanitizeFilename(fmt.Sprintf("%s - %s - %s %s", id, englishName, genus, species))
}

// SanitizeFilename replaces each of <>:"/\|?* with an underscore.
// Input is NFC-normalized first so composed and decomposed names agree.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedChars, r) {
			return '_'
		}
		return r
	}, norm.NFC.String(name))
}

// AudioExtension derives the audio file extension from the announced file
// name: the text after the last ".", or DefaultAudioExtension.
func AudioExtension(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 {
		return DefaultAudioExtension
	}
	return SanitizeFilename(fileName[idx+1:])
}
