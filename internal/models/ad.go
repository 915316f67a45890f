package models

import "time"

type AdStatus string

const (
	AdPending  AdStatus = "pending"
	AdApproved AdStatus = "approved"
	AdRejected AdStatus = "rejected"
)

// Ad represents a submitted classified advertisement. Once moderated it is
// immutable except for the public link set at approval.
type Ad struct {
	ID           int64      `json:"id"`
	SessionID    string     `json:"session_id"`
	OriginalText string     `json:"original_text"`
	EnhancedText string     `json:"enhanced_text"`
	Status       AdStatus   `json:"status"`
	Category     string     `json:"category,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	Location     string     `json:"location,omitempty"`
	ContactInfo  string     `json:"contact_info,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Link         string     `json:"link,omitempty"`
	AdminNotes   string     `json:"admin_notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
}

// AdFilters narrows the approved-ad listing. Zero values mean "no filter".
type AdFilters struct {
	Category string
	Location string
	PriceMin float64
	PriceMax float64
}
