package models

// Donor is one row of the donor wall. Amount is never scraped and stays 0.
type Donor struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Amount int64  `json:"amount" db:"amount"`
}
