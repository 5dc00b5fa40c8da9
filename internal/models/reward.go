package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reward is an admin-defined item students redeem against its own slot pool.
type Reward struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Cost        decimal.Decimal `db:"cost" json:"cost"`
	Slot        int             `db:"slot" json:"slot"`
	SlotsLeft   int             `db:"slots_left" json:"slots_left"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ClaimStatus tracks a reservation through payment.
type ClaimStatus string

const (
	ClaimStatusPending ClaimStatus = "PENDING"
	ClaimStatusClaimed ClaimStatus = "CLAIMED"
)

// RewardClaim records one student's redemption of a reward.
type RewardClaim struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	RewardID       string          `db:"reward_id" json:"reward_id"`
	SlotNumber     int             `db:"slot_number" json:"slot_number"`
	Cost           decimal.Decimal `db:"cost" json:"cost"`
	Status         ClaimStatus     `db:"status" json:"status"`
	TransactionRef *string         `db:"transaction_ref" json:"transaction_ref,omitempty"`
	ClaimedAt      time.Time       `db:"claimed_at" json:"claimed_at"`
}

// RewardClaimDetail adds reward display attributes to a claim.
type RewardClaimDetail struct {
	RewardClaim
	RewardName string `db:"reward_name" json:"reward_name"`
}
