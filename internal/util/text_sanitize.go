package util

import (
	"regexp"
	"strings"
)

var (
	pdfLigatures = strings.NewReplacer(
		"\ufb00", "ff", "\ufb01", "fi", "\ufb02", "fl", "\ufb03", "ffi", "\ufb04", "ffl",
		"\u00a0", " ", "\u202f", " ", "\u00ad", "",
		"\r\n", "\n", "\r", "\n",
	)
	// "inhi-\nbitor" as emitted by PDF extractors for words split across lines.
	lineHyphen = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
)

// SanitizeText drops NUL and other control bytes, which Postgres text
// rejects, and undoes common PDF extraction artifacts such as ligatures and
// words hyphenated across lines.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = pdfLigatures.Replace(s)
	s = strings.Map(func(ch rune) rune {
		if ch == '\n' || ch == '\t' {
			return ch
		}
		if ch < 0x20 || ch == 0x7f {
			return -1
		}
		return ch
	}, s)
	s = lineHyphen.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(s)
}
