package leads

import (
	"strings"
	"time"
)

// Status is the pipeline stage of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
)

// Statuses lists every supported status in pipeline order.
var Statuses = []Status{StatusNew, StatusContacted, StatusConverted}

// Valid reports whether s is one of the fixed statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusConverted:
		return true
	}
	return false
}

// ParseStatus normalizes raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", newValidationError("status", "must be one of new, contacted, converted")
	}
	return s, nil
}

// DefaultSource is applied when a lead is submitted without a source.
const DefaultSource = "website"

// KnownSources are the channels offered by the intake form. Other non-empty
// values are accepted as-is.
var KnownSources = []string{"website", "referral", "social", "ads", "other"}

// Note is an immutable, timestamped follow-up comment owned by a Lead.
type Note struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Text      string    `json:"text" dynamodbav:"text"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Lead is a prospective customer tracked through the pipeline.
type Lead struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Email     string    `json:"email" dynamodbav:"email"`
	Phone     string    `json:"phone" dynamodbav:"phone"`
	Source    string    `json:"source" dynamodbav:"source"`
	Status    Status    `json:"status" dynamodbav:"status"`
	Notes     []Note    `json:"notes" dynamodbav:"notes"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// clone returns a deep copy so callers cannot mutate stored notes.
func (l *Lead) clone() *Lead {
	cp := *l
	cp.Notes = make([]Note, len(l.Notes))
	copy(cp.Notes, l.Notes)
	return &cp
}

// CreateLeadRequest represents the public intake form payload.
type CreateLeadRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
	Note   string `json:"note"`
}

// UpdateLeadRequest is a partial update; nil fields are left untouched.
// Note, when set, is appended in the same atomic write as the field changes.
type UpdateLeadRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Source *string `json:"source,omitempty"`
	Status *string `json:"status,omitempty"`
	Note   *string `json:"note,omitempty"`
}

// AddNoteRequest is the payload for appending a note.
type AddNoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// Filter narrows List results. Empty fields are ignored; set fields are ANDed.
type Filter struct {
	Search string
	Status Status
	Source string
}

// NewLead is the normalized input a Store persists on Create.
type NewLead struct {
	Name   string
	Email  string
	Phone  string
	Source string
	Note   string
}

// LeadPatch is the normalized partial update a Store applies in one write.
type LeadPatch struct {
	Name   *string
	Email  *string
	Phone  *string
	Source *string
	Status *Status
	Note   *string
}

// Empty reports whether the patch changes nothing.
func (p LeadPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		p.Source == nil && p.Status == nil && p.Note == nil
}
