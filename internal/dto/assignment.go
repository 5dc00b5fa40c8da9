package dto

// AcceptTaskRequest binds the calling student to a task.
type AcceptTaskRequest struct {
	TaskID string `json:"task_id" validate:"required,notblank"`
}

// AssignmentFilter narrows a student's working assignments to one lifecycle state.
type AssignmentFilter struct {
	State string `form:"state"`
}

// ReviewRequest is the faculty decision on a submitted assignment.
// Reason is checked by the workflow so a blank one surfaces as REASON_REQUIRED.
type ReviewRequest struct {
	StudentID string `json:"student_id" validate:"required,notblank"`
	TaskID    string `json:"task_id" validate:"required,notblank"`
	Reason    string `json:"reason"`
}

// ProofURLQuery identifies a pending proof to download.
type ProofURLQuery struct {
	StudentID string `form:"student_id" validate:"required,notblank"`
	TaskID    string `form:"task_id" validate:"required,notblank"`
}

// ExportQuery selects the export encoding.
type ExportQuery struct {
	Format string `form:"format"`
}
