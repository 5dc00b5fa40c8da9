package dto

// CreateRewardRequest adds an item to the reward catalog.
type CreateRewardRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=200"`
	Description string  `json:"description" validate:"required,notblank"`
	Cost        float64 `json:"cost" validate:"gt=0"`
	Slot        int     `json:"slot" validate:"gte=1"`
}

// ClaimRewardRequest carries the caller's authorization for the debit transfer.
type ClaimRewardRequest struct {
	Authorization string `json:"authorization" validate:"required,notblank"`
}
