package util

import (
	"sort"
	"strings"
)

// SplitSentences splits on terminal punctuation, keeping the punctuation.
func SplitSentences(s string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			x := strings.TrimSpace(b.String())
			if x != "" {
				out = append(out, x)
			}
			b.Reset()
		}
	}
	rest := strings.TrimSpace(b.String())
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

// EvidenceSnippet returns the sentence of paragraph sharing the most terms
// with query, truncated to maxRunes. Ties go to the shorter sentence.
func EvidenceSnippet(paragraph, query string, maxRunes int) string {
	paragraph = normalizeWhitespace(SanitizeText(paragraph))
	if paragraph == "" {
		return ""
	}
	terms := meaningfulTerms(query)
	sentences := SplitSentences(paragraph)
	if len(terms) == 0 || len(sentences) == 0 {
		return truncateRunes(paragraph, maxRunes)
	}

	type scored struct {
		sentence string
		score    int
	}
	list := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		low := strings.ToLower(s)
		score := 0
		for _, term := range terms {
			if strings.Contains(low, term) {
				score++
			}
		}
		list = append(list, scored{sentence: s, score: score})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score == list[j].score {
			return len(list[i].sentence) < len(list[j].sentence)
		}
		return list[i].score > list[j].score
	})
	return truncateRunes(list[0].sentence, maxRunes)
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "with": {}, "from": {}, "by": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "patients": {}, "study": {},
}

func meaningfulTerms(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	uniq := map[string]struct{}{}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if len(f) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		if _, ok := uniq[f]; ok {
			continue
		}
		uniq[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return string(runes)
}
