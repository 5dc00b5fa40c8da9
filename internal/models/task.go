package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Task is a unit of work offered by faculty with a capped number of slots.
type Task struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Branches    pq.StringArray  `db:"branches" json:"branches"`
	Hours       decimal.Decimal `db:"hours" json:"hours"`
	Category    string          `db:"category" json:"category"`
	Difficulty  decimal.Decimal `db:"difficulty" json:"difficulty"`
	FacultyID   string          `db:"faculty_id" json:"faculty_id"`
	Slot        int             `db:"slot" json:"slot"`
	SlotsLeft   int             `db:"slots_left" json:"slots_left"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// TaskView is what students browse: effort inputs are replaced by the computed reward.
type TaskView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Branches    []string        `json:"branches"`
	FacultyID   string          `json:"faculty_id"`
	Slot        int             `json:"slot"`
	SlotsLeft   int             `json:"slots_left"`
	Reward      decimal.Decimal `json:"reward"`
}

// SlotClaim reports the outcome of an atomic slot decrement.
type SlotClaim struct {
	Slot      int `db:"slot"`
	SlotsLeft int `db:"slots_left"`
}

// Ordinal is the 1-based index of the slot just consumed.
func (s SlotClaim) Ordinal() int {
	return s.Slot - s.SlotsLeft
}
