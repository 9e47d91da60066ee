// Package entity provides core domain entities.
package entity

import (
	"time"
)

// Document is the base type for business transactions such as purchase orders.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`
}

// NewDocument creates a new Document dated now.
func NewDocument(userID string) Document {
	return Document{
		BaseDocument: NewBaseDocument(userID),
		Date:         time.Now().UTC(),
	}
}
