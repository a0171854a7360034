package model

import (
	"time"
)

const ConversionTypePurchase = "purchase"

// Conversion One purchase or other goal event with associated revenue.
// Revenue is held as fixed point minor units (cents) to keep revenue
// attribution exact. Immutable after creation; refunds are separate events
// handled upstream.
type Conversion struct {
	ID        string `gorm:"primary_key:true" json:"id"`
	ProjectID int64  `gorm:"primary_key:true" json:"project_id"`

	// Unique per project.
	OrderID string `json:"order_id"`

	VisitorID  string `json:"visitor_id"`
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`

	RevenueCents int64  `json:"revenue_cents"`
	Currency     string `json:"currency"`
	Type         string `json:"type"`

	ConvertedAt time.Time `json:"converted_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate Rejects malformed conversions before attribution. Failures are
// per-record, the batch continues.
func (c *Conversion) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty conversion id"}
	}
	if c.OrderID == "" {
		return &ValidationError{Field: "order_id", Reason: "empty order id"}
	}
	if c.RevenueCents < 0 {
		return &ValidationError{Field: "revenue_cents", Reason: "negative revenue"}
	}
	if c.ConvertedAt.IsZero() {
		return &ValidationError{Field: "converted_at", Reason: "missing conversion time"}
	}
	return nil
}
