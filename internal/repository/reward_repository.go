package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/pkg/database"
)

const rewardColumns = `id, name, description, cost, slot, slots_left, created_by, created_at`

const claimColumns = `id, student_id, reward_id, slot_number, cost, status, transaction_ref, claimed_at`

// RewardRepository persists the reward catalog and student claims.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository constructs the repository.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create inserts a reward with its full slot pool available.
func (r *RewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now().UTC()
	}
	reward.SlotsLeft = reward.Slot
	const query = `INSERT INTO rewards (` + rewardColumns + `)
VALUES (:id, :name, :description, :cost, :slot, :slots_left, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reward); err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

// FindByID returns sql.ErrNoRows when the reward does not exist.
func (r *RewardRepository) FindByID(ctx context.Context, id string) (*models.Reward, error) {
	const query = `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`
	var reward models.Reward
	if err := r.db.GetContext(ctx, &reward, query, id); err != nil {
		return nil, err
	}
	return &reward, nil
}

// List returns the catalog, newest first.
func (r *RewardRepository) List(ctx context.Context) ([]models.Reward, error) {
	const query = `SELECT ` + rewardColumns + ` FROM rewards ORDER BY created_at DESC`
	var rewards []models.Reward
	if err := r.db.SelectContext(ctx, &rewards, query); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// Reserve takes one slot of the reward and records a PENDING claim in one transaction.
func (r *RewardRepository) Reserve(ctx context.Context, claim *models.RewardClaim) (models.SlotClaim, error) {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	var slot models.SlotClaim
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const decrement = `UPDATE rewards SET slots_left = slots_left - 1
WHERE id = $1 AND slots_left >= 1
RETURNING slot, slots_left`
		if err := tx.GetContext(ctx, &slot, decrement, claim.RewardID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSlotsExhausted
			}
			return fmt.Errorf("decrement reward slot: %w", err)
		}

		claim.SlotNumber = slot.Ordinal()
		claim.Status = models.ClaimStatusPending
		claim.ClaimedAt = time.Now().UTC()
		const insert = `INSERT INTO reward_claims (` + claimColumns + `)
VALUES (:id, :student_id, :reward_id, :slot_number, :cost, :status, :transaction_ref, :claimed_at)`
		if _, err := tx.NamedExecContext(ctx, insert, claim); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert reward claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.SlotClaim{}, err
	}
	return slot, nil
}

// FindClaim returns sql.ErrNoRows when the student has not claimed the reward.
func (r *RewardRepository) FindClaim(ctx context.Context, studentID, rewardID string) (*models.RewardClaim, error) {
	const query = `SELECT ` + claimColumns + ` FROM reward_claims WHERE student_id = $1 AND reward_id = $2`
	var claim models.RewardClaim
	if err := r.db.GetContext(ctx, &claim, query, studentID, rewardID); err != nil {
		return nil, err
	}
	return &claim, nil
}

// ConfirmClaim marks a PENDING claim as paid.
func (r *RewardRepository) ConfirmClaim(ctx context.Context, claimID, transactionRef string) error {
	const query = `UPDATE reward_claims SET status = $2, transaction_ref = $3
WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, claimID, models.ClaimStatusClaimed, transactionRef, models.ClaimStatusPending)
	if err != nil {
		return fmt.Errorf("confirm reward claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm reward claim rows: %w", err)
	}
	if affected == 0 {
		return ErrStateChanged
	}
	return nil
}

// ReleaseClaim drops a PENDING claim and gives its slot back.
func (r *RewardRepository) ReleaseClaim(ctx context.Context, claimID string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var rewardID string
		const remove = `DELETE FROM reward_claims WHERE id = $1 AND status = $2 RETURNING reward_id`
		if err := tx.GetContext(ctx, &rewardID, remove, claimID, models.ClaimStatusPending); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStateChanged
			}
			return fmt.Errorf("delete reward claim: %w", err)
		}
		const restore = `UPDATE rewards SET slots_left = slots_left + 1 WHERE id = $1 AND slots_left < slot`
		if _, err := tx.ExecContext(ctx, restore, rewardID); err != nil {
			return fmt.Errorf("restore reward slot: %w", err)
		}
		return nil
	})
}

// ListClaimsByStudent returns the student's claims with reward names.
func (r *RewardRepository) ListClaimsByStudent(ctx context.Context, studentID string) ([]models.RewardClaimDetail, error) {
	const query = `SELECT c.id, c.student_id, c.reward_id, c.slot_number, c.cost, c.status, c.transaction_ref, c.claimed_at,
	rw.name AS reward_name
FROM reward_claims c
JOIN rewards rw ON rw.id = c.reward_id
WHERE c.student_id = $1
ORDER BY c.claimed_at DESC`
	var claims []models.RewardClaimDetail
	if err := r.db.SelectContext(ctx, &claims, query, studentID); err != nil {
		return nil, fmt.Errorf("list reward claims: %w", err)
	}
	return claims, nil
}
