// Package lotplan normalises free-text Queensland cadastral references
// into canonical "LOT/PLAN" identifiers, e.g. "3RP67254" -> "3/RP67254".
package lotplan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Accepted formats, all case-insensitive:
//
//	"3/RP67254"      -> "3/RP67254"
//	"3 RP67254"      -> "3/RP67254"
//	"3RP67254"       -> "3/RP67254"
//	"L2 RP53435"     -> "2/RP53435"
//	"Lot 2 RP53435"  -> "2/RP53435"
//	"2-4 RP53435"    -> "2/RP53435", "3/RP53435", "4/RP53435"
//	"A/DP397521"     -> "A/DP397521"
//
// A plan reference is 1-4 letters followed by 1-7 digits, possibly with
// stray spaces between them ("RP 53435").
var (
	slashRe = regexp.MustCompile(`(?i)^([A-Z0-9]+)\s*/\s*([A-Z]{1,4}\s*\d{1,7})$`)
	spaceRe = regexp.MustCompile(`(?i)^(?:L(?:OT)?\s*)?([A-Z0-9]+)\s+([A-Z]{1,4}\s*\d{1,7})$`)
	rangeRe = regexp.MustCompile(`(?i)^(\d+)\s*-\s*(\d+)\s+([A-Z]{1,4}\s*\d{1,7})$`)
	tightRe = regexp.MustCompile(`(?i)^(?:L(?:OT)?\s*)?([0-9A-Z]+?)([A-Z]{1,4}\s*\d{1,7})$`)

	// "Sec 3" / "Section 3" qualifiers carry no meaning for the QLD
	// cadastre, which exposes a combined lotplan field with no section
	// component. They are dropped before shape matching.
	sectionRe = regexp.MustCompile(`(?i)\bSEC(?:TION)?\s*\d+\b`)
)

// Normalize converts one free-text cadastral reference into zero or more
// canonical "LOT/PLAN" identifiers.
//
// It is pure and never fails: it is called on every keystroke to give
// live feedback, so malformed input must degrade, not error. Blank input
// and malformed ranges yield zero identifiers. Any other input that
// matches no known shape is returned as a single cleaned-up candidate so
// the cadastre lookup can report it as not found instead of the input
// silently vanishing.
func Normalize(input string) []string {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}

	s = sectionRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}

	// Range form expands to one identifier per lot.
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		return expandRange(m[1], m[2], m[3])
	}

	// Explicit slash form.
	if m := slashRe.FindStringSubmatch(s); m != nil {
		return []string{canonical(m[1], m[2])}
	}

	// Space-separated form, with optional "L"/"Lot" prefix.
	if m := spaceRe.FindStringSubmatch(s); m != nil {
		return []string{canonical(m[1], m[2])}
	}

	// Tight form with no separator, e.g. "3RP67254".
	if m := tightRe.FindStringSubmatch(s); m != nil {
		return []string{canonical(m[1], m[2])}
	}

	// Already slash-separated but with an unusual plan shape: clean up
	// both halves and let the cadastre decide.
	if lot, plan, ok := strings.Cut(s, "/"); ok {
		return []string{canonical(strings.TrimSpace(lot), strings.TrimSpace(plan))}
	}

	// Unrecognised shape: echo a cleaned-up candidate.
	return []string{strings.ToUpper(s)}
}

// canonical assembles "LOT/PLAN" from raw lot and plan tokens. A leading
// "L" on the lot ("L2") is user shorthand, not part of the designator.
func canonical(lot, plan string) string {
	lot = strings.TrimLeft(strings.ToUpper(lot), "L")
	plan = strings.ReplaceAll(strings.ToUpper(plan), " ", "")
	return lot + "/" + plan
}

// maxRangeSpan bounds how many lots a single range may expand to.
// Normalize runs on every keystroke, so an absurd range like
// "1-99999999" must yield nothing rather than allocate millions of
// candidates.
const maxRangeSpan = 1000

// expandRange produces one identifier per lot in [start, end]. A
// reversed, non-numeric, or wider-than-maxRangeSpan range yields
// nothing; partially typed input must not produce bogus candidates.
func expandRange(startTok, endTok, plan string) []string {
	start, err := strconv.Atoi(startTok)
	if err != nil {
		return nil
	}
	end, err := strconv.Atoi(endTok)
	if err != nil {
		return nil
	}
	if start > end || end-start+1 > maxRangeSpan {
		return nil
	}

	plan = strings.ReplaceAll(strings.ToUpper(plan), " ", "")
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, fmt.Sprintf("%d/%s", i, plan))
	}
	return out
}

// Split separates a canonical identifier into its lot and plan parts.
func Split(lotplan string) (lot, plan string, ok bool) {
	lot, plan, ok = strings.Cut(lotplan, "/")
	if !ok || lot == "" || plan == "" {
		return "", "", false
	}
	return lot, plan, true
}
