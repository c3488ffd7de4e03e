package models

import "time"

// ListingStatus is the publication state of a listing
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingPaused   ListingStatus = "paused"
	ListingDeleted  ListingStatus = "deleted"
	ListingInReview ListingStatus = "in_review"
)

// Listing is a user-submitted advertisement
type Listing struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	CategoryID  string        `json:"category_id,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ImagePaths  []string      `json:"image_paths,omitempty"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Owner is the submitter of listings. Contact info is used for notifications.
type Owner struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Submission is a candidate listing presented to admission control
type Submission struct {
	OwnerID     string   `json:"owner_id"`
	SourceAddr  string   `json:"-"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImagePaths  []string `json:"image_paths,omitempty"`
}
