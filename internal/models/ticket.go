package models

import "gorm.io/gorm"

// Enquiry is a free-form question submitted through the enquiry flow.
type Enquiry struct {
	gorm.Model
	TicketID    string `json:"ticket_id" gorm:"uniqueIndex"` // uuid
	PhoneNumber string `json:"phone_number" gorm:"index"`
	UserName    string `json:"user_name"`
	Message     string `json:"message"`
}

// Complaint is a grievance submitted through the complaint flow.
type Complaint struct {
	gorm.Model
	TicketID    string `json:"ticket_id" gorm:"uniqueIndex"` // uuid
	PhoneNumber string `json:"phone_number" gorm:"index"`
	UserName    string `json:"user_name"`
	Message     string `json:"message"`
	Resolved    bool   `json:"resolved"`
}
