package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeDecimal ConfigurationType = "DECIMAL"
)

// PolicyKeyBaseMultiplier is the fixed key of the reward policy singleton.
const PolicyKeyBaseMultiplier = "reward.base_multiplier"

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// RewardPolicy is the typed view of the base multiplier entry.
type RewardPolicy struct {
	BaseMultiplier decimal.Decimal `json:"base_multiplier"`
	UpdatedBy      *string         `json:"updated_by,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Warnings       []string        `json:"warnings,omitempty"`
}
