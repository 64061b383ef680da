// Package servicetest provides in-memory collaborators for exercising the services
// without MongoDB, Cloudinary or a WebSocket hub.
package servicetest

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/eventhub/internal/models"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Events is an in-memory EventsRepo with the same conditional semantics as the
// Mongo implementation.
type Events struct {
	mu     sync.Mutex
	events map[string]*models.Event
	// FailCreate makes CreateEvent return an error.
	FailCreate error
}

// NewEvents seeds the store with copies of events.
func NewEvents(events ...*models.Event) *Events {
	m := &Events{events: make(map[string]*models.Event)}
	for _, e := range events {
		m.events[e.ID] = clone(e)
	}
	return m
}

func clone(e *models.Event) *models.Event {
	c := *e
	c.Attendees = append([]string{}, e.Attendees...)
	return &c
}

// Get returns a copy of the stored event, or nil.
func (m *Events) Get(id string) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		return clone(e)
	}
	return nil
}

func (m *Events) CreateEvent(_ context.Context, event *models.Event) error {
	if m.FailCreate != nil {
		return m.FailCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return models.ErrDuplicate
	}
	m.events[event.ID] = clone(event)
	return nil
}

func (m *Events) GetEventByID(_ context.Context, id string) (*models.Event, error) {
	if e := m.Get(id); e != nil {
		return e, nil
	}
	return nil, models.ErrNotFound
}

func (m *Events) sorted(match func(*models.Event) bool) []*models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Event, 0)
	for _, e := range m.events {
		if match(e) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *Events) SearchEvents(_ context.Context, search, location string) ([]*models.Event, error) {
	contains := func(s, sub string) bool { return strings.Contains(strings.ToLower(s), strings.ToLower(sub)) }
	return m.sorted(func(e *models.Event) bool {
		if search != "" && !contains(e.Title, search) && !contains(e.Description, search) {
			return false
		}
		return location == "" || contains(e.Location, location)
	}), nil
}

func (m *Events) ListEvents(_ context.Context, filter models.EventFilter, offset, limit int) ([]*models.Event, int64, error) {
	all := m.sorted(func(e *models.Event) bool {
		if filter.Category != "" && e.Category != filter.Category {
			return false
		}
		return filter.MinDate == nil || !e.Date.Before(*filter.MinDate)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []*models.Event{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *Events) UpdateEvent(_ context.Context, id, creatorID string, changes models.EventChanges) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Creator != creatorID {
		return nil, models.ErrNoMatch
	}
	if changes.MaxAttendees != nil && len(e.Attendees) > *changes.MaxAttendees {
		return nil, models.ErrNoMatch
	}
	changes.Apply(e)
	e.UpdatedAt = time.Now()
	return clone(e), nil
}

func (m *Events) DeleteEvent(_ context.Context, id, creatorID string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Creator != creatorID {
		return nil, models.ErrNoMatch
	}
	delete(m.events, id)
	return e, nil
}

func (m *Events) AddAttendee(_ context.Context, id, userID string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.HasAttendee(userID) || e.IsFull() {
		return nil, models.ErrNoMatch
	}
	e.Attendees = append(e.Attendees, userID)
	return clone(e), nil
}

func (m *Events) RemoveAttendee(_ context.Context, id, userID string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || !e.HasAttendee(userID) {
		return nil, models.ErrNoMatch
	}
	kept := e.Attendees[:0]
	for _, a := range e.Attendees {
		if a != userID {
			kept = append(kept, a)
		}
	}
	e.Attendees = kept
	return clone(e), nil
}

// Users is an in-memory UserRepo with a unique email constraint.
type Users struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewUsers(users ...*models.User) *Users {
	m := &Users{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *Users) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return models.ErrDuplicate
		}
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *Users) UpsertUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == user.Email && id != user.ID {
			return nil, models.ErrDuplicate
		}
	}
	c := *user
	m.users[user.ID] = &c
	return &c, nil
}

func (m *Users) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, models.ErrNotFound
}

func (m *Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Users) GetUsersByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// Images records uploads and deletions. Uploaded files get the public id "events/<filename>".
type Images struct {
	mu        sync.Mutex
	UploadErr error
	DeleteErr error
	uploads   int
	deleted   []string
}

func (f *Images) Upload(_ context.Context, img models.ImageUpload) (*models.StoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.uploads++
	id := "events/" + img.Filename
	return &models.StoredImage{URL: "https://img.test/" + id + ".jpg", PublicID: id}, nil
}

func (f *Images) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return f.DeleteErr
}

type Notification struct {
	Kind string
	ID   string
}

// Notifier records every broadcast trigger.
type Notifier struct {
	mu    sync.Mutex
	calls []Notification
}

func (r *Notifier) record(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Notification{Kind: kind, ID: id})
}

func (r *Notifier) EventCreated(e *models.ResolvedEvent) { r.record("eventCreated", e.ID) }
func (r *Notifier) EventUpdated(e *models.ResolvedEvent) { r.record("eventUpdated", e.ID) }
func (r *Notifier) EventDeleted(id string)               { r.record("eventDeleted", id) }
func (r *Notifier) AttendeesChanged(e *models.ResolvedEvent) {
	r.record("attendeeUpdate", e.ID)
}

// Calls returns the notifications received so far.
func (r *Notifier) Calls() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.calls...)
}

// Deleted returns the public ids passed to Delete.
func (f *Images) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Uploads is the number of successful uploads.
func (f *Images) Uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}
