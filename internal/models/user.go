package models

import "gorm.io/gorm"

// UserDetail is the durable user profile. Sessions refresh their denormalized
// name/address copies from here when missing.
type UserDetail struct {
	gorm.Model
	PhoneNumber   string `json:"phone_number" gorm:"uniqueIndex"`
	Name          string `json:"name"`
	PreferredName string `json:"preferred_name"`
	Address       string `json:"address"`
	Address2      string `json:"address2"`
	Address3      string `json:"address3"`
}

// DisplayName returns the name to greet the user with.
func (u *UserDetail) DisplayName() string {
	if u.PreferredName != "" {
		return u.PreferredName
	}
	if u.Name != "" {
		return u.Name
	}
	return "Guest"
}

// BestAddress returns the first non-empty saved address.
func (u *UserDetail) BestAddress() string {
	for _, a := range []string{u.Address, u.Address2, u.Address3} {
		if a != "" {
			return a
		}
	}
	return ""
}
