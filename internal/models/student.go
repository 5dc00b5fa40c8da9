package models

// Student is the payout-relevant slice of a student profile.
type Student struct {
	ID            string `db:"id" json:"id"`
	FullName      string `db:"full_name" json:"full_name"`
	Branch        string `db:"branch" json:"branch"`
	PayoutAddress string `db:"payout_address" json:"-"`
}
