package dto

// CreateTaskRequest describes a task offered by a faculty member.
type CreateTaskRequest struct {
	Name        string   `json:"name" validate:"required,notblank,max=200"`
	Description string   `json:"description" validate:"required,notblank"`
	Branches    []string `json:"branches" validate:"required,min=1,dive,notblank"`
	Hours       float64  `json:"hours" validate:"gt=0"`
	Category    string   `json:"category" validate:"required,notblank"`
	Difficulty  float64  `json:"difficulty" validate:"gte=0"`
	Slot        int      `json:"slot" validate:"gte=1"`
}
