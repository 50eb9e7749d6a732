package models

// AnalysisStatus is the server-side lifecycle state of a reporting analysis job.
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusInProgress AnalysisStatus = "in_progress"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
	AnalysisStatusCancelled  AnalysisStatus = "cancelled"
)

// IsActive returns true while the job may still make progress on the server.
func (s AnalysisStatus) IsActive() bool {
	return s == AnalysisStatusPending || s == AnalysisStatusInProgress
}

// IsTerminal returns true once the job will no longer change state.
func (s AnalysisStatus) IsTerminal() bool {
	switch s {
	case AnalysisStatusCompleted, AnalysisStatusFailed, AnalysisStatusCancelled:
		return true
	default:
		return false
	}
}

// Analysis is a reporting analysis job generated for an uploaded file.
type Analysis struct {
	ID           string         `json:"id"`
	FileID       string         `json:"file_id"`
	Status       AnalysisStatus `json:"status"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`

	// Timestamps are kept as sent by the backend, which may omit the offset.
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AnalysisList is the response of the per-file analysis listing.
type AnalysisList struct {
	Analyses []Analysis `json:"analyses"`
	Total    int        `json:"total"`
}
