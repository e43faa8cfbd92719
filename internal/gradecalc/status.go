package gradecalc

import "strings"

// SubmissionStatus is the closed set of states a regular submission can be in.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusLate      SubmissionStatus = "late"
	StatusMissing   SubmissionStatus = "missing"
)

// NormalizeStatus maps arbitrary input to a known status. Anything
// unrecognised collapses to missing, so downstream scoring never has to
// branch on unknown strings.
func NormalizeStatus(raw string) SubmissionStatus {
	switch SubmissionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusSubmitted:
		return StatusSubmitted
	case StatusLate:
		return StatusLate
	default:
		return StatusMissing
	}
}

// NextStatus advances the interactive toggle cycle:
// missing -> submitted -> late -> missing.
func NextStatus(current SubmissionStatus) SubmissionStatus {
	switch current {
	case StatusMissing:
		return StatusSubmitted
	case StatusSubmitted:
		return StatusLate
	default:
		return StatusMissing
	}
}
