package dto

// UpdatePolicyRequest sets the reward base multiplier.
type UpdatePolicyRequest struct {
	BaseMultiplier *float64 `json:"base_multiplier" validate:"required,gte=0"`
}
