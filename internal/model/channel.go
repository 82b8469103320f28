package model

import "fmt"

// Category is the channel kind. Each category carries its own delivery
// bookkeeping policy as data, so the pipeline never branches on raw strings.
type Category string

const (
	// CategoryBroadcast receives fresh, unreviewed listings exactly once
	// (best effort): a listing is marked as sent whatever the outcome of the
	// attempt, trading delivery guarantees for never re-spamming the channel.
	CategoryBroadcast Category = "broadcast"

	// CategorySuccessful cycles successfully closed listings across channels;
	// posting bookkeeping advances only on confirmed success.
	CategorySuccessful Category = "successful"
)

func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBroadcast:
		return CategoryBroadcast, nil
	case CategorySuccessful:
		return CategorySuccessful, nil
	}
	return "", fmt.Errorf("unknown channel category %q", s)
}

// BookkeepingPolicy states how a delivery attempt's outcome maps to listing
// bookkeeping.
type BookkeepingPolicy int

const (
	// BestEffortOnce marks the listing as handled regardless of whether the
	// attempt succeeded, timed out, or errored.
	BestEffortOnce BookkeepingPolicy = iota

	// ConfirmedOnly records the posting only on confirmed success.
	ConfirmedOnly
)

// Policy returns the bookkeeping policy attached to the category.
func (c Category) Policy() BookkeepingPolicy {
	if c == CategorySuccessful {
		return ConfirmedOnly
	}
	return BestEffortOnce
}

// LocationType selects the location filter rule of a channel.
type LocationType string

const (
	LocationAll     LocationType = "all"
	LocationCity    LocationType = "city"
	LocationRegion  LocationType = "region"
	LocationSuburbs LocationType = "suburbs"
)

func ParseLocationType(s string) (LocationType, error) {
	switch LocationType(s) {
	case LocationAll, "":
		return LocationAll, nil
	case LocationCity, LocationRegion, LocationSuburbs:
		return LocationType(s), nil
	}
	return "", fmt.Errorf("unknown location type %q", s)
}

// Channel is one external messaging destination with its filter spec.
type Channel struct {
	ID       int64
	Category Category

	DealType   string
	ObjectType string

	// ChatID is the transport address: a numeric Telegram chat id or an
	// "@username" public channel handle.
	ChatID string

	// Price bounds in USD, inclusive. Nil means "not filtered on this bound".
	PriceFrom *int
	PriceTo   *int

	LocationType LocationType
}
