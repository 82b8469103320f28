package model

import "time"

// Template is a named message template. Body contains {placeholder} tokens
// bound to listing attributes at render time.
type Template struct {
	ID   int64
	Name string
	Body string
}

// Template names resolved by the delivery pipeline per channel category.
const (
	TemplateBroadcast  = "telegram_channel"
	TemplateSuccessful = "telegram_channel_successful"
)

// Role distinguishes agents from team leads. Both participate in round-robin
// assignment, over separate record kinds (listings vs orders).
type Role string

const (
	RoleAgent    Role = "agent"
	RoleTeamLead Role = "team_lead"
)

// Agent is a human operator. ID is the round-robin ordering key.
type Agent struct {
	ID         int64
	Username   string
	Name       string
	Role       Role
	TeamLeadID *int64
}

// Order is a client request, optionally linked to a listing and a team lead.
type Order struct {
	ID         int64
	Name       string
	Phone      string
	Username   string
	Wishes     string
	Budget     string
	District   string
	Rooms      string
	ListingID  *int64
	TeamLeadID *int64
	CreatedAt  time.Time
}
