package models

import (
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 9
)

// Event is the stored document. Creator and Attendees hold user ids.
type Event struct {
	ID            string    `bson:"_id" json:"_id"`
	Title         string    `bson:"title" json:"title" validate:"required,max=200"`
	Description   string    `bson:"description" json:"description" validate:"required,max=5000"`
	Date          time.Time `bson:"date" json:"date" validate:"required"`
	Location      string    `bson:"location" json:"location" validate:"required,max=300"`
	Category      string    `bson:"category" json:"category" validate:"required,max=100"`
	Creator       string    `bson:"creator" json:"creator" validate:"required"`
	Attendees     []string  `bson:"attendees" json:"attendees"`
	MaxAttendees  int       `bson:"maxAttendees" json:"maxAttendees" validate:"gte=1"`
	ImageURL      string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ImagePublicID string    `bson:"imagePublicId,omitempty" json:"-"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAttendee reports whether userID is in the attendee list.
func (e *Event) HasAttendee(userID string) bool {
	for _, a := range e.Attendees {
		if a == userID {
			return true
		}
	}
	return false
}

func (e *Event) IsFull() bool {
	return len(e.Attendees) >= e.MaxAttendees
}

// UserRef is the display projection of a user embedded in resolved events.
type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ResolvedEvent is an Event whose creator and attendees carry display attributes.
type ResolvedEvent struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Date         time.Time `json:"date"`
	Location     string    `json:"location"`
	Category     string    `json:"category"`
	Creator      UserRef   `json:"creator"`
	Attendees    []UserRef `json:"attendees"`
	MaxAttendees int       `json:"maxAttendees"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Resolve expands the event's user references using users keyed by id.
// Unknown ids resolve to a bare reference; attendee order is preserved.
func (e *Event) Resolve(users map[string]*User) *ResolvedEvent {
	ref := func(id string) UserRef {
		if u, ok := users[id]; ok && u != nil {
			return u.Ref()
		}
		return UserRef{ID: id}
	}

	attendees := make([]UserRef, 0, len(e.Attendees))
	for _, id := range e.Attendees {
		attendees = append(attendees, ref(id))
	}

	return &ResolvedEvent{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Date:         e.Date,
		Location:     e.Location,
		Category:     e.Category,
		Creator:      ref(e.Creator),
		Attendees:    attendees,
		MaxAttendees: e.MaxAttendees,
		ImageURL:     e.ImageURL,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// UserIDs returns the creator and attendee ids without duplicates.
func (e *Event) UserIDs() []string {
	seen := make(map[string]struct{}, len(e.Attendees)+1)
	ids := make([]string, 0, len(e.Attendees)+1)
	for _, id := range append([]string{e.Creator}, e.Attendees...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// EventFilter selects events for List. Zero values mean "no constraint".
type EventFilter struct {
	Category string
	MinDate  *time.Time
}

// EventChanges is a partial update; nil fields are left untouched.
type EventChanges struct {
	Title         *string
	Description   *string
	Date          *time.Time
	Location      *string
	Category      *string
	MaxAttendees  *int
	ImageURL      *string
	ImagePublicID *string
}

func (c EventChanges) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Date == nil && c.Location == nil &&
		c.Category == nil && c.MaxAttendees == nil && c.ImageURL == nil && c.ImagePublicID == nil
}

// Apply copies the set fields onto e.
func (c EventChanges) Apply(e *Event) {
	if c.Title != nil {
		e.Title = *c.Title
	}
	if c.Description != nil {
		e.Description = *c.Description
	}
	if c.Date != nil {
		e.Date = *c.Date
	}
	if c.Location != nil {
		e.Location = *c.Location
	}
	if c.Category != nil {
		e.Category = *c.Category
	}
	if c.MaxAttendees != nil {
		e.MaxAttendees = *c.MaxAttendees
	}
	if c.ImageURL != nil {
		e.ImageURL = *c.ImageURL
	}
	if c.ImagePublicID != nil {
		e.ImagePublicID = *c.ImagePublicID
	}
}

// Normalize trims surrounding whitespace from every text field that is set.
func (c *EventChanges) Normalize() {
	for _, p := range []*string{c.Title, c.Description, c.Location, c.Category} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}
