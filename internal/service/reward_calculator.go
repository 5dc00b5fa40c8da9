package service

import (
	"context"

	"github.com/shopspring/decimal"
)

var (
	attendanceThreshold = decimal.NewFromInt(75)
	attendanceBase      = decimal.RequireFromString("0.25")
	difficultyWeight    = decimal.RequireFromString("0.33")
	hundred             = decimal.NewFromInt(100)
)

// ComputeReward is the pure reward formula. The attendance term only applies at or above 75.
func ComputeReward(baseMultiplier, attendance, hours, difficulty decimal.Decimal) decimal.Decimal {
	multiplier := difficultyWeight.Mul(difficulty).Add(baseMultiplier)
	if attendance.GreaterThanOrEqual(attendanceThreshold) {
		multiplier = multiplier.Add(attendanceBase.Add(attendance.Div(hundred)))
	}
	return multiplier.Mul(hours)
}

type policyReader interface {
	BaseMultiplier(ctx context.Context) (decimal.Decimal, error)
}

// RewardCalculator binds the formula to the current policy value and the configured attendance signal.
type RewardCalculator struct {
	policy     policyReader
	attendance decimal.Decimal
}

// NewRewardCalculator constructs a calculator.
func NewRewardCalculator(policy policyReader, attendance float64) *RewardCalculator {
	return &RewardCalculator{policy: policy, attendance: decimal.NewFromFloat(attendance)}
}

// Multiplier fetches the policy value once so a batch of computations shares it.
func (c *RewardCalculator) Multiplier(ctx context.Context) (decimal.Decimal, error) {
	return c.policy.BaseMultiplier(ctx)
}

// Compute returns the reward for a task under the current policy.
func (c *RewardCalculator) Compute(ctx context.Context, hours, difficulty decimal.Decimal) (decimal.Decimal, error) {
	base, err := c.policy.BaseMultiplier(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return c.ComputeWith(base, hours, difficulty), nil
}

// ComputeWith applies an already fetched base multiplier.
func (c *RewardCalculator) ComputeWith(base, hours, difficulty decimal.Decimal) decimal.Decimal {
	return ComputeReward(base, c.attendance, hours, difficulty)
}
