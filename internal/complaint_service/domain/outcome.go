package domain

// SubmissionStatus classifies how one submission attempt ended.
type SubmissionStatus int

const (
	// StatusConfirmed means the accepted panel was present after the final
	// step.
	StatusConfirmed SubmissionStatus = iota
	// StatusUnconfirmed means the form completed but acceptance could not be
	// verified; a diagnostic snapshot was captured.
	StatusUnconfirmed
	// StatusFailed means the form rejected the submission or transport to it
	// failed.
	StatusFailed
)

func (s SubmissionStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusUnconfirmed:
		return "unconfirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmissionOutcome is the terminal result of one complaint's submission.
// Outcomes are produced once and never retried.
type SubmissionOutcome struct {
	Complaint      *Complaint
	Status         SubmissionStatus
	DiagnosticPath string
	Err            error
}
