// Package extract derives structured receipt fields from raw recognized
// text. Extraction is a pure function over the text: deterministic, no I/O,
// and tolerant of missing or garbled sections. Every field is independently
// optional, and each one is driven by an explicit priority-ordered pattern
// chain evaluated with first-match-wins semantics. Missed fields are
// preferred over wrongly-attributed ones throughout.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Policy holds the tunable plausibility bounds for line items. The defaults
// guard against phone numbers and OCR noise being read as prices; they encode
// no business rule, so callers may adjust them.
type Policy struct {
	// MaxItemAmount is the exclusive upper bound for a line-item price.
	MaxItemAmount float64
	// MinDescriptionLen is the exclusive lower bound for a trimmed
	// line-item description.
	MinDescriptionLen int
}

// DefaultPolicy returns the standard plausibility bounds.
func DefaultPolicy() Policy {
	return Policy{MaxItemAmount: 10000, MinDescriptionLen: 2}
}

// LineItem is a single purchased product or service parsed from the receipt.
type LineItem struct {
	Description string
	Amount      float64
}

// Fields holds the structured values extracted from one receipt. Nil pointers
// mean the field was not found, which is an expected outcome, not an error.
type Fields struct {
	Merchant *string
	Date     *string
	Total    *float64
	Subtotal *float64
	Tax      *float64
	Tip      *float64
	Items    []LineItem
}

// merchantScanLines bounds how deep into the receipt the merchant search
// goes; the name is printed in the header, never further down.
const merchantScanLines = 5

var (
	phonePattern   = regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`)
	addressPattern = regexp.MustCompile(`(?i)\d+\s+\w+\s+(st|street|ave|road|rd|blvd)`)

	// Date pattern families in priority order. The captured substring is
	// stored verbatim: a textually-plausible but calendrically-invalid
	// date (02/30/2024) is accepted as-is rather than silently dropped.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),            // MM/DD/YYYY or MM-DD-YYYY
		regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),              // YYYY-MM-DD
		regexp.MustCompile(`(?i)([A-Za-z]{3}\s+\d{1,2},?\s+\d{4})`),      // Jan 15, 2024
		regexp.MustCompile(`(?i)(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})`),        // 15 Jan 2024
	}

	totalPatterns = []*regexp.Regexp{
		amountPattern(`total`),
		amountPattern(`grand\s*total`),
		amountPattern(`amount\s*due`),
		amountPattern(`balance`),
	}
	subtotalPatterns = []*regexp.Regexp{
		amountPattern(`sub\s*total`),
	}
	taxPatterns = []*regexp.Regexp{
		amountPattern(`tax`),
		amountPattern(`sales\s*tax`),
		amountPattern(`vat`),
	}
	tipPatterns = []*regexp.Regexp{
		amountPattern(`tip`),
	}

	// summaryLinePattern marks structural/summary lines that must never be
	// read as purchased items.
	summaryLinePattern = regexp.MustCompile(`(?i)(total|tax|tip|subtotal|balance|change|cash|credit|visa|mastercard)`)

	// itemPattern matches a description followed by a trailing price with
	// exactly two fraction digits, anchored to the end of the line.
	itemPattern = regexp.MustCompile(`^(.+?)\s+\$?(\d+\.\d{2})\s*$`)
)

// amountPattern builds a case-insensitive keyword-amount matcher. The word
// boundary keeps "total" from matching inside "subtotal".
func amountPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + keyword + `[:\s]*\$?(\d+\.?\d*)`)
}

// Extract derives structured fields from raw OCR text under the given
// policy. It never fails: unparseable sections simply leave their fields nil.
func Extract(rawText string, policy Policy) Fields {
	lines := splitLines(rawText)
	return Fields{
		Merchant: merchant(lines),
		Date:     date(rawText),
		Total:    firstAmount(rawText, totalPatterns),
		Subtotal: firstAmount(rawText, subtotalPatterns),
		Tax:      firstAmount(rawText, taxPatterns),
		Tip:      firstAmount(rawText, tipPatterns),
		Items:    lineItems(lines, policy),
	}
}

// splitLines trims and drops empty lines while preserving order.
func splitLines(text string) []string {
	raw := strings.Split(strings.TrimSpace(text), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// merchant picks the first header line that is not a phone number, not a
// street address, and not numeric filler. Receipts put the store name at the
// top, above the address block.
func merchant(lines []string) *string {
	for i, line := range lines {
		if i >= merchantScanLines {
			break
		}
		if phonePattern.MatchString(line) || addressPattern.MatchString(line) {
			continue
		}
		if len(line) <= 2 || digitsOnly(line) {
			continue
		}
		return &line
	}
	return nil
}

// digitsOnly reports whether the line is composed solely of digits and
// spaces (transaction numbers, register ids).
func digitsOnly(line string) bool {
	stripped := strings.ReplaceAll(line, " ", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// date returns the first match of the first pattern family that hits
// anywhere in the text, verbatim.
func date(text string) *string {
	for _, p := range datePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return &m[1]
		}
	}
	return nil
}

// firstAmount walks a priority pattern chain and returns the first capture
// that parses as a number. A capture that fails numeric parsing is silently
// skipped and the next pattern is tried.
func firstAmount(text string, patterns []*regexp.Regexp) *float64 {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// lineItems collects plausible (description, price) pairs in source order.
// Summary lines are rejected outright; the rest must carry a trailing
// two-decimal price and pass the policy bounds.
func lineItems(lines []string, policy Policy) []LineItem {
	var items []LineItem
	for _, line := range lines {
		if summaryLinePattern.MatchString(line) {
			continue
		}
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		amount, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if len(desc) <= policy.MinDescriptionLen {
			continue
		}
		if amount <= 0 || amount >= policy.MaxItemAmount {
			continue
		}
		items = append(items, LineItem{Description: desc, Amount: amount})
	}
	return items
}
