package util

import (
	"regexp"
	"strings"
)

// Paragraph is one block of paper text and the section heading it falls under.
// Index counts paragraphs across the whole paper.
type Paragraph struct {
	Index   int    `json:"index"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// DefaultSection applies to text that appears before the first heading.
const DefaultSection = "abstract"

var (
	blankLines     = regexp.MustCompile(`\n[ \t]*\n`)
	headingNumbers = regexp.MustCompile(`^(?:\d+(?:\.\d+)*|[ivxIVX]+)[.)]?\s+`)
)

var sectionHeadings = map[string]string{
	"abstract":               "abstract",
	"summary":                "abstract",
	"introduction":           "introduction",
	"background":             "introduction",
	"methods":                "methods",
	"method":                 "methods",
	"methodology":            "methods",
	"materials and methods":  "methods",
	"patients and methods":   "methods",
	"study design":           "methods",
	"results":                "results",
	"findings":               "results",
	"discussion":             "discussion",
	"results and discussion": "results",
	"conclusion":             "conclusion",
	"conclusions":            "conclusion",
	"concluding remarks":     "conclusion",
}

// DetectSection reports the canonical section named by a heading line such
// as "2. Materials and Methods" or "RESULTS:".
func DetectSection(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 40 {
		return "", false
	}
	line = headingNumbers.ReplaceAllString(line, "")
	line = strings.TrimRight(line, ":. ")
	line = strings.ToLower(normalizeWhitespace(line))
	s, ok := sectionHeadings[line]
	return s, ok
}

// SplitParagraphs breaks text on blank lines, tracks section headings and
// splits paragraphs longer than maxRunes with ChunkText.
func SplitParagraphs(text string, maxRunes, overlap int) []Paragraph {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	section := DefaultSection
	out := make([]Paragraph, 0)
	for _, block := range blankLines.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		first, rest, _ := strings.Cut(block, "\n")
		if s, ok := DetectSection(first); ok {
			section = s
			block = strings.TrimSpace(rest)
			if block == "" {
				continue
			}
		}
		block = normalizeWhitespace(block)
		for _, part := range ChunkText(block, maxRunes, overlap) {
			out = append(out, Paragraph{Index: len(out), Section: section, Text: part})
		}
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
