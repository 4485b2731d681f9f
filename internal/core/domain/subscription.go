package domain

import "time"

// Subscription grants SubscriberID access to CreatorID's gated content.
// At most one exists per (SubscriberID, CreatorID) pair.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID UserID    `json:"subscriber_id"`
	CreatorID    UserID    `json:"creator_id"`
	CreatedAt    time.Time `json:"created_at"`
}
