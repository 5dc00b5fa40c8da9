package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentState is derived from the submission and rejection flags.
type AssignmentState string

const (
	AssignmentStateAccepted  AssignmentState = "ACCEPTED"
	AssignmentStateSubmitted AssignmentState = "SUBMITTED"
	AssignmentStateRejected  AssignmentState = "REJECTED"
)

// Valid reports whether s names a live assignment state.
func (s AssignmentState) Valid() bool {
	switch s {
	case AssignmentStateAccepted, AssignmentStateSubmitted, AssignmentStateRejected:
		return true
	}
	return false
}

// Assignment is the working record binding one student to one task.
type Assignment struct {
	StudentID       string          `db:"student_id" json:"student_id"`
	TaskID          string          `db:"task_id" json:"task_id"`
	FacultyID       string          `db:"faculty_id" json:"faculty_id"`
	RewardValue     decimal.Decimal `db:"reward_value" json:"reward_value"`
	SlotNumber      int             `db:"slot_number" json:"slot_number"`
	IsSubmitted     bool            `db:"is_submitted" json:"is_submitted"`
	IsRejected      bool            `db:"is_rejected" json:"is_rejected"`
	ProofRef        *string         `db:"proof_ref" json:"proof_ref,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AcceptedAt      time.Time       `db:"accepted_at" json:"accepted_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// State maps the stored flags onto the lifecycle.
func (a *Assignment) State() AssignmentState {
	switch {
	case a.IsRejected:
		return AssignmentStateRejected
	case a.IsSubmitted:
		return AssignmentStateSubmitted
	default:
		return AssignmentStateAccepted
	}
}

// CompletedAssignment is the immutable archival record written on approval.
type CompletedAssignment struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	TaskID          string          `db:"task_id" json:"task_id"`
	FacultyID       string          `db:"faculty_id" json:"faculty_id"`
	RewardValue     decimal.Decimal `db:"reward_value" json:"reward_value"`
	SlotNumber      int             `db:"slot_number" json:"slot_number"`
	ProofRef        *string         `db:"proof_ref" json:"proof_ref,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ApprovalReason  string          `db:"approval_reason" json:"approval_reason"`
	TransactionRef  string          `db:"transaction_ref" json:"transaction_ref"`
	AcceptedAt      time.Time       `db:"accepted_at" json:"accepted_at"`
	ApprovedAt      time.Time       `db:"approved_at" json:"approved_at"`
}

// AssignmentDetail joins a working assignment with task and student display attributes.
type AssignmentDetail struct {
	Assignment
	TaskName        string `db:"task_name" json:"task_name"`
	TaskDescription string `db:"task_description" json:"task_description"`
	TaskCategory    string `db:"task_category" json:"task_category"`
	StudentName     string `db:"student_name" json:"student_name"`
	StudentBranch   string `db:"student_branch" json:"student_branch"`
}

// CompletedDetail joins a completed assignment with display attributes.
type CompletedDetail struct {
	CompletedAssignment
	TaskName      string `db:"task_name" json:"task_name"`
	TaskCategory  string `db:"task_category" json:"task_category"`
	StudentName   string `db:"student_name" json:"student_name"`
	StudentBranch string `db:"student_branch" json:"student_branch"`
}

// ProofLink is a time-limited download URL for a submitted proof.
type ProofLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CompletedFilter scopes completed assignment listings to an owner.
type CompletedFilter struct {
	FacultyID string
	StudentID string
}
