package models

import (
	"time"
)

// Product is one inventory item. Identifier is assigned at creation and never
// changes; it is the value encoded into the product's barcode.
type Product struct {
	ProductID  uint      `json:"productID,omitempty" gorm:"primaryKey;column:productID"`
	Identifier string    `json:"id" gorm:"uniqueIndex;size:32;not null;column:identifier"`
	Name       string    `json:"name" gorm:"not null;column:name"`
	Quantity   int       `json:"quantity" gorm:"not null;default:0;column:quantity"`
	Price      float64   `json:"price" gorm:"column:price"`
	Rate       float64   `json:"rate" gorm:"column:rate"`
	Size       *string   `json:"size,omitempty" gorm:"column:size"`
	Nursery    *string   `json:"nursery,omitempty" gorm:"column:nursery"`
	CreatedAt  time.Time `json:"createdAt,omitempty" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty" gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// InStock reports whether at least one unit is on hand.
func (p Product) InStock() bool {
	return p.Quantity > 0
}

type FilterParams struct {
	SearchTerm string `form:"search"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}
