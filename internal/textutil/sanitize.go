package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// separatorReplacer substitutes path separators so a value can never escape
// the directory it is joined into.
var separatorReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
)

// SanitizePathComponent makes a catalog string safe to use as a single path
// element. Path separators become underscores and the result is NFC
// normalised so composed and decomposed forms of the same title map to the
// same file. Surrounding whitespace is preserved apart from newlines, which
// are collapsed to spaces.
func SanitizePathComponent(value string) string {
	value = norm.NFC.String(value)
	value = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		case 0:
			return -1
		}
		return r
	}, value)
	return separatorReplacer.Replace(value)
}
