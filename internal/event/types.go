// Package event defines core types shared across pipeline subsystems.
package event

import (
	"time"
)

// Type distinguishes the two event families the pipeline collects.
type Type string

// Supported event types.
const (
	TypeConference Type = "conference"
	TypeHackathon  Type = "hackathon"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	return t == TypeConference || t == TypeHackathon
}

// Status represents the lifecycle state of a record inside the pipeline.
type Status string

// Record status values persisted in the event store.
const (
	StatusDiscovered Status = "discovered"
	StatusFiltered   Status = "filtered"
	StatusValidated  Status = "validated"
	StatusEnriched   Status = "enriched"
)

// CandidateURL is a raw discovery result before it reaches the ledger.
type CandidateURL struct {
	URL          string         `json:"url"`
	SourceName   string         `json:"source_name"`
	DiscoveredAt time.Time      `json:"discovered_at"`
	Score        float64        `json:"score"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// LedgerEntry tracks a discovered URL and whether it has been enriched.
// The URL is normalized before insertion; at most one entry exists per
// normalized URL.
type LedgerEntry struct {
	URL         string         `json:"url"`
	SourceType  Type           `json:"source_type"`
	IsEnriched  bool           `json:"is_enriched"`
	FirstSeenAt time.Time      `json:"first_seen_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Speaker is one entry of a record's speaker list.
type Speaker struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
}

// PriceTier is one entry of a record's price list.
type PriceTier struct {
	Label string `json:"label"`
	Price string `json:"price"`
}

// Candidate is an event at any stage before it is durably stored. Field
// values are nil/empty when unknown; dates are YYYY-MM-DD strings that have
// already passed calendar validation.
type Candidate struct {
	URL                  string      `json:"url"`
	Name                 string      `json:"name"`
	StartDate            string      `json:"start_date,omitempty"`
	EndDate              string      `json:"end_date,omitempty"`
	RegistrationDeadline string      `json:"registration_deadline,omitempty"`
	RegistrationURL      string      `json:"registration_url,omitempty"`
	Location             string      `json:"location,omitempty"`
	City                 string      `json:"city,omitempty"`
	Remote               bool        `json:"remote"`
	Description          string      `json:"description,omitempty"`
	ShortDescription     string      `json:"short_description,omitempty"`
	Speakers             []Speaker   `json:"speakers,omitempty"`
	Organizers           []string    `json:"organizers,omitempty"`
	Sponsors             []string    `json:"sponsors,omitempty"`
	Themes               []string    `json:"themes,omitempty"`
	TicketPrices         []PriceTier `json:"ticket_prices,omitempty"`
	IsPaid               bool        `json:"is_paid"`
	Source               string      `json:"source"`
	ExtractionSuccess    bool        `json:"extraction_success"`
	ExtractionMethod     string      `json:"extraction_method"`
}

// EventRecord is the canonical stored form of a validated candidate.
type EventRecord struct {
	ID                   string      `json:"id"`
	URL                  string      `json:"url"`
	EventType            Type        `json:"event_type"`
	Name                 string      `json:"name"`
	StartDate            string      `json:"start_date,omitempty"`
	EndDate              string      `json:"end_date,omitempty"`
	RegistrationDeadline string      `json:"registration_deadline,omitempty"`
	RegistrationURL      string      `json:"registration_url,omitempty"`
	Location             string      `json:"location,omitempty"`
	City                 string      `json:"city,omitempty"`
	Remote               bool        `json:"remote"`
	Description          string      `json:"description,omitempty"`
	ShortDescription     string      `json:"short_description,omitempty"`
	Speakers             []Speaker   `json:"speakers,omitempty"`
	Organizers           []string    `json:"organizers,omitempty"`
	Sponsors             []string    `json:"sponsors,omitempty"`
	Themes               []string    `json:"themes,omitempty"`
	TicketPrices         []PriceTier `json:"ticket_prices,omitempty"`
	IsPaid               bool        `json:"is_paid"`
	Source               string      `json:"source"`
	QualityScore         float64     `json:"quality_score"`
	Status               Status      `json:"status"`
	NeedsReview          bool        `json:"needs_review"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Action is a manual disposition recorded against a stored event.
type Action string

// Action values accepted by the actions endpoint.
const (
	ActionArchive       Action = "archive"
	ActionReachedOut    Action = "reached_out"
	ActionInterested    Action = "interested"
	ActionNotInterested Action = "not_interested"
	ActionApplied       Action = "applied"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionArchive, ActionReachedOut, ActionInterested, ActionNotInterested, ActionApplied:
		return true
	}
	return false
}

// ActionRecord is one append-only audit row.
type ActionRecord struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventType Type      `json:"event_type"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// RunCounters summarizes one pipeline run so partial failure stays visible.
type RunCounters struct {
	Discovered int `json:"discovered"`
	Filtered   int `json:"filtered"`
	Enriched   int `json:"enriched"`
	Saved      int `json:"saved"`
	Updated    int `json:"updated"`
	Errors     int `json:"errors"`
}

// UpsertOutcome reports whether an upsert inserted a new row or updated one.
type UpsertOutcome string

// Upsert outcomes.
const (
	UpsertInserted UpsertOutcome = "inserted"
	UpsertUpdated  UpsertOutcome = "updated"
)

// QueryFilter narrows event store reads for the API layer.
type QueryFilter struct {
	EventType  Type
	Status     Status
	Location   string
	RemoteOnly bool
	FutureOnly bool
	SortBy     string
	Limit      int
	Offset     int
}
