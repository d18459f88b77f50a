package models

import "gorm.io/gorm"

// Feedback is a post-order rating left by a customer.
type Feedback struct {
	gorm.Model
	PhoneNumber string `json:"phone_number" gorm:"index"`
	UserName    string `json:"user_name"`
	OrderID     uint   `json:"order_id" gorm:"index"`
	Rating      string `json:"rating"` // excellent, good, bad, skipped
	Comment     string `json:"comment"`
}

// Feedback rating constants
const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingBad       = "bad"
	RatingSkipped   = "skipped"
)
