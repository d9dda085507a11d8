package core

import "time"

// FieldNames lists every field a DeckProfile carries, in response order.
// Normalization guarantees each one is present as a string, empty when the
// model could not extract it.
var FieldNames = []string{
	"company_name",
	"industry",
	"market_size",
	"country",
	"key_team_members",
	"revenue",
	"valuation",
	"funding_sought",
}

// DeckProfile is the structured record extracted from a pitch deck.
// All values are strings; unknown values are empty strings, never null.
// Industry holds a "Primary;Sub-industry" pair. KeyTeamMembers holds
// "Name | Role | Employer" entries joined with "; ".
type DeckProfile struct {
	CompanyName    string `json:"company_name"`
	Industry       string `json:"industry"`
	MarketSize     string `json:"market_size"`
	Country        string `json:"country"`
	KeyTeamMembers string `json:"key_team_members"`
	Revenue        string `json:"revenue"`
	Valuation      string `json:"valuation"`
	FundingSought  string `json:"funding_sought"`

	// ParseError is set when the model output could not be parsed as JSON.
	// RawText then preserves the full output for manual inspection.
	ParseError string `json:"parse_error,omitempty"`
	RawText    string `json:"raw_text,omitempty"`
}

// UploadedFile is a transient in-memory upload. It is consumed once by the
// orchestrator and discarded when the request completes.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StoredExtraction is a persisted DeckProfile plus the originating object
// path and a generated identifier. Records are never mutated after insert.
type StoredExtraction struct {
	ID        string      `json:"id"`
	FilePath  string      `json:"file_path"`
	Profile   DeckProfile `json:"profile"`
	CreatedAt time.Time   `json:"created_at"`
}

// SignedDownloadLink is a short-lived URL bound to one storage object.
// It has no persistence of its own; every request mints a fresh one.
type SignedDownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
