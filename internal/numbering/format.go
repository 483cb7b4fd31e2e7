// Package numbering issues sequential, pattern formatted document numbers per
// tenant and document kind.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// Kind identifies an independent sequence.
type Kind string

const (
	KindClient  Kind = "client"
	KindInvoice Kind = "invoice"
	KindReceipt Kind = "receipt"
	KindPatient Kind = "patient"
)

// Kinds lists every supported sequence kind.
var Kinds = []Kind{KindClient, KindInvoice, KindReceipt, KindPatient}

// DefaultPatterns seed a sequence the first time it is used.
var DefaultPatterns = map[Kind]string{
	KindClient:  "CL-00000",
	KindPatient: "PT-00000",
	KindInvoice: "INV-year-00000",
	KindReceipt: "REC-year-00000",
}

// yearToken is replaced with the four digit year.
const yearToken = "year"

const maxPatternLen = 64

// ParseKind validates a kind received from a caller.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := DefaultPatterns[k]; !ok {
		return "", httpx.NewValidationError("kind", "must be one of client invoice receipt patient")
	}
	return k, nil
}

// ValidatePattern checks a user supplied pattern.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return httpx.NewValidationError("pattern", "is required")
	}
	if len(pattern) > maxPatternLen {
		return httpx.NewValidationError("pattern", fmt.Sprintf("must be at most %d characters", maxPatternLen))
	}
	return nil
}

// Format renders counter into pattern. The rightmost run of '0' in the raw
// pattern is the counter field; the year token is substituted around it so
// digits of the year are never taken for the counter. A counter wider than
// the field is printed in full and reported through widened. A pattern with
// no zero run gets the counter appended.
func Format(pattern string, counter int64, now time.Time) (number string, widened bool) {
	year := strconv.Itoa(now.Year())
	digits := strconv.FormatInt(counter, 10)

	end := strings.LastIndexByte(pattern, '0')
	if end < 0 {
		return strings.ReplaceAll(pattern, yearToken, year) + digits, false
	}
	end++
	start := end - 1
	for start > 0 && pattern[start-1] == '0' {
		start--
	}
	width := end - start
	if len(digits) > width {
		widened = true
	} else {
		digits = strings.Repeat("0", width-len(digits)) + digits
	}
	prefix := strings.ReplaceAll(pattern[:start], yearToken, year)
	suffix := strings.ReplaceAll(pattern[end:], yearToken, year)
	return prefix + digits + suffix, widened
}

// Preview shows what the first number of pattern looks like. It never touches
// stored counters.
func Preview(pattern string, now time.Time) string {
	number, _ := Format(pattern, 1, now)
	return number
}
