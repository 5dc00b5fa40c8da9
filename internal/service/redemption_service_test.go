package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
)

func rewardCampus() *campus {
	c := newCampus()
	c.db.addReward(models.Reward{ID: "r1", Name: "Canteen voucher", Cost: decimal.NewFromInt(5), Slot: 2})
	c.db.addStudent(models.Student{ID: "s1", FullName: "Ana", Branch: "CSE", PayoutAddress: "wallet-s1"})
	c.db.addStudent(models.Student{ID: "s2", FullName: "Ben", Branch: "CSE", PayoutAddress: "wallet-s2"})
	return c
}

var claimBody = dto.ClaimRewardRequest{Authorization: "signed-by-student"}

func TestRedemptionServiceCreateReward(t *testing.T) {
	c := newCampus()
	ctx := context.Background()
	req := dto.CreateRewardRequest{Name: "Library pass", Description: "Late access", Cost: 3.5, Slot: 10}

	_, err := c.redemptions.CreateReward(ctx, claimsFor(models.RoleFaculty, "f1"), req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	reward, err := c.redemptions.CreateReward(ctx, claimsFor(models.RoleAdmin, "admin-1"), req)
	require.NoError(t, err)
	assert.NotEmpty(t, reward.ID)
	assert.Equal(t, 10, reward.SlotsLeft)
	assert.True(t, reward.Cost.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, []string{models.AuditActionRewardCreate}, c.audit.actions())

	_, err = c.redemptions.CreateReward(ctx, claimsFor(models.RoleAdmin, "admin-1"), dto.CreateRewardRequest{Name: "x", Description: "y", Cost: 1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	rewards, err := c.redemptions.List(ctx, claimsFor(models.RoleStudent, "s1"))
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestRedemptionServiceClaim(t *testing.T) {
	c := rewardCampus()
	ctx := context.Background()
	student := claimsFor(models.RoleStudent, "s1")

	claim, err := c.redemptions.Claim(ctx, student, "r1", claimBody)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, claim.Status)
	assert.Equal(t, 1, claim.SlotNumber)
	assert.Equal(t, "tx-1", derefString(claim.TransactionRef))
	assert.Equal(t, 1, c.db.rewardSlotsLeft("r1"))

	calls := c.gateway.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "wallet-s1", calls[0].Source)
	assert.Equal(t, "admin-wallet", calls[0].Destination)
	assert.Equal(t, "signed-by-student", calls[0].Authorization)
	assert.Equal(t, "reward:s1:r1", calls[0].IdempotencyKey)

	_, err = c.redemptions.Claim(ctx, student, "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyClaimed)
	assert.Len(t, c.gateway.calls(), 1)

	claims, err := c.redemptions.ListClaims(ctx, student)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "Canteen voucher", claims[0].RewardName)
}

func TestRedemptionServiceClaimErrors(t *testing.T) {
	c := rewardCampus()
	ctx := context.Background()

	_, err := c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "missing", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrRewardNotFound)

	_, err = c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "r1", dto.ClaimRewardRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = c.redemptions.Claim(ctx, claimsFor(models.RoleAdmin, "admin-1"), "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	c.db.addReward(models.Reward{ID: "r0", Name: "Sold out", Cost: decimal.NewFromInt(1), Slot: 1})
	c.db.rewards["r0"].SlotsLeft = 0
	_, err = c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "r0", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrNoSlotsAvailable)
	assert.Empty(t, c.gateway.calls())
}

func TestRedemptionServiceLastSlot(t *testing.T) {
	c := rewardCampus()
	c.db.addReward(models.Reward{ID: "r1", Name: "Canteen voucher", Cost: decimal.NewFromInt(5), Slot: 1})
	ctx := context.Background()

	_, err := c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "r1", claimBody)
	require.NoError(t, err)
	_, err = c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s2"), "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrNoSlotsAvailable)
	assert.Equal(t, 0, c.db.rewardSlotsLeft("r1"))
}

func TestRedemptionServicePaymentFailureReleasesSlot(t *testing.T) {
	c := rewardCampus()
	c.gateway.next = []error{fmt.Errorf("%w: insufficient balance", payment.ErrTransferFailed)}
	ctx := context.Background()
	student := claimsFor(models.RoleStudent, "s1")

	_, err := c.redemptions.Claim(ctx, student, "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrPaymentFailed)
	assert.Equal(t, 2, c.db.rewardSlotsLeft("r1"))
	_, held := c.db.claim("s1", "r1")
	assert.False(t, held)

	attempt, _ := c.db.payment("reward:s1:r1")
	assert.Equal(t, models.PaymentStatusFailed, attempt.Status)
	assert.NotNil(t, attempt.SettledAt)

	claim, err := c.redemptions.Claim(ctx, student, "r1", claimBody)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, claim.Status)
	assert.Equal(t, 1, c.db.rewardSlotsLeft("r1"))
}

func TestRedemptionServiceUnknownPaymentKeepsReservation(t *testing.T) {
	c := rewardCampus()
	c.gateway.next = []error{fmt.Errorf("%w: connection reset", payment.ErrStatusUnknown)}
	ctx := context.Background()

	_, err := c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrPaymentStatusUnknown)

	claim, held := c.db.claim("s1", "r1")
	require.True(t, held)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.Equal(t, 1, c.db.rewardSlotsLeft("r1"))

	_, err = c.redemptions.Claim(ctx, claimsFor(models.RoleStudent, "s1"), "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyClaimed)
	assert.Len(t, c.gateway.calls(), 1)
}

func TestRedemptionServiceLedgerFailureReleasesSlot(t *testing.T) {
	c := rewardCampus()
	c.db.beginErr = errors.New("connection reset by peer")
	ctx := context.Background()
	student := claimsFor(models.RoleStudent, "s1")

	_, err := c.redemptions.Claim(ctx, student, "r1", claimBody)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, c.gateway.calls())
	assert.Equal(t, 2, c.db.rewardSlotsLeft("r1"))
	_, held := c.db.claim("s1", "r1")
	assert.False(t, held)

	c.db.beginErr = nil
	claim, err := c.redemptions.Claim(ctx, student, "r1", claimBody)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, claim.Status)
	assert.Equal(t, 1, c.db.rewardSlotsLeft("r1"))
	assert.Len(t, c.gateway.calls(), 1)
}
