// Package receipt assembles OCR output into typed scan results and exposes
// them over HTTP. The Service owns success/failure framing for a scan: every
// pipeline failure is converted exactly once, at this boundary, into a
// Failure outcome, and an empty extraction is still a Success.
package receipt

import "time"

// LineItem is one purchased product or service parsed from the receipt.
type LineItem struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
}

// Record is the structured result of one scan. All extracted fields are
// optional; RawText and Confidence are always present, so a non-receipt photo
// degrades to unparsed text with low confidence instead of failing. Records
// are immutable after assembly.
type Record struct {
	Merchant   *string    `json:"merchant"`
	Date       *string    `json:"date"` // verbatim as printed, not normalized
	Total      *float64   `json:"total"`
	Subtotal   *float64   `json:"subtotal"`
	Tax        *float64   `json:"tax"`
	Tip        *float64   `json:"tip"`
	Items      []LineItem `json:"items"`
	RawText    string     `json:"raw_text"`
	Confidence float64    `json:"confidence"` // in [0, 1]
}

// Outcome is the tagged result of one scan request. JobID correlates logs and
// responses and carries no other semantics. Callers distinguish success and
// failure via the Success flag, never via transport status codes.
type Outcome struct {
	Success bool    `json:"success"`
	JobID   string  `json:"job_id"`
	Data    *Record `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Scan is a persisted successful scan in the history store.
type Scan struct {
	ID          string    `json:"id"` // the job id of the originating request
	Record      Record    `json:"record"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
