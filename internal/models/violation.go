package models

import "time"

// ViolationStatus is the lifecycle state of a violation record
type ViolationStatus string

const (
	ViolationPending  ViolationStatus = "pending"
	ViolationResolved ViolationStatus = "resolved"
)

// ViolationRecord is the persisted outcome of a flagged scan.
// At most one pending record exists per listing; re-scans update it in place.
// The only way out of pending is an explicit admin resolution.
type ViolationRecord struct {
	ID             string          `json:"id"`
	ListingID      string          `json:"listing_id"`
	OwnerID        string          `json:"owner_id"`
	Severity       Severity        `json:"severity"`
	Score          int             `json:"score"`
	ViolationsJSON string          `json:"violations_json"`
	ActionTaken    Action          `json:"action_taken,omitempty"`
	Status         ViolationStatus `json:"status"`
	ResolvedBy     string          `json:"resolved_by,omitempty"`
	ResolvedReason string          `json:"resolved_reason,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ViolationDetail is the JSON payload stored in ViolationsJSON
type ViolationDetail struct {
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
	Flags    []string `json:"flags"`
	RedFlags []string `json:"red_flags"`
}

// NotificationLogEntry is one appended record of a delivery attempt
type NotificationLogEntry struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	OwnerID    string    `json:"owner_id"`
	ActionType Action    `json:"action_type"`
	Recipient  string    `json:"recipient"`
	Delivered  bool      `json:"delivered"`
	CreatedAt  time.Time `json:"created_at"`
}
