package domain

import (
	"strings"
	"unicode/utf8"
)

// PreviewLength is the number of characters kept in ReportPreview.Preview.
const PreviewLength = 1000

// DecodeDocument decodes raw as UTF-8, writing one U+FFFD for every maximal invalid
// subpart (a lone bad byte, or the valid prefix of a truncated sequence). It never
// fails. The second result is the decoded length in characters.
func DecodeDocument(raw []byte) (string, int) {
	var b strings.Builder
	b.Grow(len(raw))
	n := 0
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size == 1 {
			size = invalidSubpartLen(raw)
		}
		b.WriteRune(r)
		raw = raw[size:]
		n++
	}
	return b.String(), n
}

// invalidSubpartLen returns how many bytes at the start of raw form one maximal
// subpart of an ill-formed sequence. raw must not start with a valid rune.
func invalidSubpartLen(raw []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xBF) // allowed range of the second byte
	switch b0 := raw[0]; {
	case b0 >= 0xC2 && b0 <= 0xDF:
		need = 1
	case b0 == 0xE0:
		need, lo = 2, 0xA0
	case b0 == 0xED:
		need, hi = 2, 0x9F
	case b0 >= 0xE1 && b0 <= 0xEF:
		need = 2
	case b0 == 0xF0:
		need, lo = 3, 0x90
	case b0 == 0xF4:
		need, hi = 3, 0x8F
	case b0 >= 0xF1 && b0 <= 0xF3:
		need = 3
	default:
		return 1
	}
	i := 1
	for ; i <= need && i < len(raw); i++ {
		c := raw[i]
		if i > 1 {
			lo, hi = 0x80, 0xBF
		}
		if c < lo || c > hi {
			break
		}
	}
	return i
}

// NewReportPreview decodes the document and keeps the first PreviewLength characters.
func NewReportPreview(reportID, documentID string, raw []byte) *ReportPreview {
	text, total := DecodeDocument(raw)
	return &ReportPreview{
		ReportID:    reportID,
		DocumentID:  documentID,
		TotalLength: total,
		Preview:     truncateRunes(text, PreviewLength),
	}
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
