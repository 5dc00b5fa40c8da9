package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPurpose names what a payment settles.
type PaymentPurpose string

const (
	PaymentPurposeTask   PaymentPurpose = "TASK"
	PaymentPurposeReward PaymentPurpose = "REWARD"
)

// PaymentStatus is the local view of a transfer.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusUnknown   PaymentStatus = "UNKNOWN"
)

// PaymentAttempt is written before a transfer is issued and keyed by its idempotency key.
type PaymentAttempt struct {
	ID             string          `db:"id" json:"id"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	Purpose        PaymentPurpose  `db:"purpose" json:"purpose"`
	StudentID      string          `db:"student_id" json:"student_id"`
	SubjectID      string          `db:"subject_id" json:"subject_id"`
	ActorID        string          `db:"actor_id" json:"actor_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Source         string          `db:"source" json:"-"`
	Destination    string          `db:"destination" json:"-"`
	Memo           string          `db:"memo" json:"memo"`
	Status         PaymentStatus   `db:"status" json:"status"`
	TransactionRef *string         `db:"transaction_ref" json:"transaction_ref,omitempty"`
	FailureReason  *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	Attempts       int             `db:"attempts" json:"attempts"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	SettledAt      *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
}

// Outstanding reports whether the transfer may still move money.
func (p PaymentAttempt) Outstanding() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusUnknown
}

// TaskPaymentKey is the idempotency key for paying out a task.
func TaskPaymentKey(studentID, taskID string) string {
	return fmt.Sprintf("task:%s:%s", studentID, taskID)
}

// RewardPaymentKey is the idempotency key for redeeming a reward.
func RewardPaymentKey(studentID, rewardID string) string {
	return fmt.Sprintf("reward:%s:%s", studentID, rewardID)
}
