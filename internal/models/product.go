package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is one sellable item in the merchant's catalog, with live stock.
type Product struct {
	gorm.Model
	Name        string          `json:"name" gorm:"index"`
	Category    string          `json:"category" gorm:"index"`
	Variant     string          `json:"variant"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"` // units in stock
	Available   bool            `json:"available"`
}
