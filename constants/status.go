package constants

// JobStatus is the canonical status for rows in the results table.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED" // terminal failure
)

// ReconcileStatus is the outcome of one line-item arithmetic check.
type ReconcileStatus string

const (
	StatusPass              ReconcileStatus = "PASS"
	StatusFail              ReconcileStatus = "FAIL"
	StatusSkip              ReconcileStatus = "SKIP"
	StatusPassWithInference ReconcileStatus = "PASS_WITH_INFERENCE"
)

// Passed reports whether the status counts as a successful check.
func (s ReconcileStatus) Passed() bool {
	return s == StatusPass || s == StatusPassWithInference
}

// CheckNotApplicable marks informational summary checks.
const CheckNotApplicable = "not_applicable"
