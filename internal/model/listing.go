package model

import "time"

// Status is the listing lifecycle status.
//
// The empty status means "freshly ingested, not yet reviewed"; matching treats
// it the same as a NULL column value. Listings are never deleted by the
// dispatcher core, they only move between statuses.
type Status string

const (
	StatusNone         Status = ""
	StatusNew          Status = "new"
	StatusActive       Status = "active"
	StatusVerification Status = "verification"
	StatusSpam         Status = "spam"
	StatusSuccessful   Status = "successful"
	StatusArchived     Status = "archived"
	StatusNotRelevant  Status = "not_relevant"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusNew, StatusActive, StatusVerification,
		StatusSpam, StatusSuccessful, StatusArchived, StatusNotRelevant:
		return true
	}
	return false
}

// MediaFile is one media attachment of a listing.
// Position is the explicit display order used when building media groups.
type MediaFile struct {
	ID          int64
	ListingID   int64
	URL         string
	ContentType string
	Position    int
}

// Listing is one real-estate ad record.
//
// Listings are produced by the ingestion collaborator (upsert keyed by URL)
// and mutated by the matching/dispatch/assignment engines.
type Listing struct {
	ID         int64
	DealType   string
	ObjectType string

	Title       string
	Price       string // raw mixed-currency text, e.g. "15000 грн" or "$500"
	Location    string
	Description string
	Owner       string
	Rooms       string
	Floor       string
	Square      string
	Phone       string

	URL    string // stable unique ingestion key
	Status Status

	// SendingLock guards against concurrent dispatch of the same listing.
	// It is only ever toggled through the store lock primitives.
	SendingLock bool

	// SentToBroadcast transitions false->true once and never reverts.
	SentToBroadcast     bool
	LastPostedChannelID string
	LastPostedAt        *time.Time

	AgentID *int64

	ScrapedAt time.Time
	Media     []MediaFile
}

// Attributes returns the placeholder bindings available to templates.
// Missing values are left to the renderer's sentinel handling.
func (l *Listing) Attributes() map[string]string {
	return map[string]string{
		"title":       l.Title,
		"price":       l.Price,
		"location":    l.Location,
		"description": l.Description,
		"owner":       l.Owner,
		"rooms":       l.Rooms,
		"floor":       l.Floor,
		"square":      l.Square,
		"phone":       l.Phone,
		"deal_type":   l.DealType,
		"object_type": l.ObjectType,
		"url":         l.URL,
	}
}
