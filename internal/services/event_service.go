package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
)

// maxMembershipAttempts bounds retries when a conditional membership write misses
// but the follow-up read shows the precondition holds again.
const maxMembershipAttempts = 3

// ImageStore is the object store holding event images.
type ImageStore interface {
	Upload(ctx context.Context, img models.ImageUpload) (*models.StoredImage, error)
	Delete(ctx context.Context, publicID string) error
}

// Notifier receives every committed event mutation. Implementations must not block.
type Notifier interface {
	EventCreated(event *models.ResolvedEvent)
	EventUpdated(event *models.ResolvedEvent)
	EventDeleted(eventID string)
	AttendeesChanged(event *models.ResolvedEvent)
}

type CreateEventInput struct {
	Title        string
	Description  string
	Date         time.Time
	Location     string
	Category     string
	MaxAttendees int
}

type ListParams struct {
	Category string
	MinDate  *time.Time
	Page     int
	PageSize int
}

type EventService struct {
	eventsRepo  models.EventsRepo
	usersRepo   models.UserRepo
	images      ImageStore
	notifier    Notifier
	logger      *slog.Logger
	maxPageSize int
}

func NewEventService(
	eventsRepo models.EventsRepo,
	usersRepo models.UserRepo,
	images ImageStore,
	notifier Notifier,
	logger *slog.Logger,
	maxPageSize int,
) *EventService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		eventsRepo:  eventsRepo,
		usersRepo:   usersRepo,
		images:      images,
		notifier:    notifier,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

func (es *EventService) Search(ctx context.Context, search, location string) ([]*models.ResolvedEvent, error) {
	events, err := es.eventsRepo.SearchEvents(ctx, strings.TrimSpace(search), strings.TrimSpace(location))
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return es.resolveAll(ctx, events)
}

func (es *EventService) List(ctx context.Context, params ListParams) (*models.EventPage, error) {
	page, size := es.normalizePage(params.Page, params.PageSize)
	filter := models.EventFilter{
		Category: strings.TrimSpace(params.Category),
		MinDate:  params.MinDate,
	}

	offset := math.MaxInt
	if page-1 <= math.MaxInt/size {
		offset = (page - 1) * size
	}

	events, total, err := es.eventsRepo.ListEvents(ctx, filter, offset, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	resolved, err := es.resolveAll(ctx, events)
	if err != nil {
		return nil, err
	}

	return &models.EventPage{
		Events:     resolved,
		Pagination: models.NewPagination(page, size, total),
	}, nil
}

func (es *EventService) normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = models.DefaultPage
	}
	if size < 1 {
		size = models.DefaultPageSize
	}
	if es.maxPageSize > 0 && size > es.maxPageSize {
		size = es.maxPageSize
	}
	return page, size
}

func (es *EventService) GetByID(ctx context.Context, id string) (*models.ResolvedEvent, error) {
	event, err := es.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := es.lookupUsers(ctx, event)
	if err != nil {
		return nil, err
	}
	return event.Resolve(users), nil
}

func (es *EventService) Create(ctx context.Context, input CreateEventInput, creatorID string, image *models.ImageUpload) (*models.ResolvedEvent, error) {
	if creatorID == "" {
		return nil, ErrUnauthenticated
	}

	now := time.Now().UTC()
	event := &models.Event{
		ID:           uuid.New().String(),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Date:         input.Date.UTC(),
		Location:     strings.TrimSpace(input.Location),
		Category:     strings.TrimSpace(input.Category),
		Creator:      creatorID,
		Attendees:    []string{},
		MaxAttendees: input.MaxAttendees,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := models.Validate.Struct(event); err != nil {
		return nil, invalidf("%s", describeValidation("", err))
	}

	var uploaded *models.StoredImage
	if image != nil {
		stored, err := es.images.Upload(ctx, *image)
		if err != nil {
			return nil, fmt.Errorf("failed to upload event image: %w", err)
		}
		uploaded = stored
		event.ImageURL = stored.URL
		event.ImagePublicID = stored.PublicID
	}

	if err := es.eventsRepo.CreateEvent(ctx, event); err != nil {
		if uploaded != nil {
			es.discardImage(ctx, event.ID, uploaded.PublicID)
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	resolved := es.resolveAfterWrite(ctx, event)
	es.notifier.EventCreated(resolved)
	es.logger.Info("Event created", "event_id", event.ID, "creator", creatorID)
	return resolved, nil
}

// Update applies a partial change set. A new image replaces the stored one; the old
// image is removed only after the event points at the new one.
func (es *EventService) Update(ctx context.Context, id string, changes models.EventChanges, requesterID string, image *models.ImageUpload) (*models.ResolvedEvent, error) {
	existing, err := es.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Creator != requesterID {
		return nil, ErrForbidden
	}

	// image fields are only ever set from an upload
	changes.ImageURL, changes.ImagePublicID = nil, nil
	changes.Normalize()
	if changes.IsEmpty() && image == nil {
		users, err := es.lookupUsers(ctx, existing)
		if err != nil {
			return nil, err
		}
		return existing.Resolve(users), nil
	}

	// validate the event as it will be stored
	merged := *existing
	changes.Apply(&merged)
	if err := models.Validate.Struct(&merged); err != nil {
		return nil, invalidf("%s", describeValidation("", err))
	}
	if merged.MaxAttendees < len(existing.Attendees) {
		return nil, capacityError(merged.MaxAttendees, len(existing.Attendees))
	}

	var uploaded *models.StoredImage
	if image != nil {
		stored, err := es.images.Upload(ctx, *image)
		if err != nil {
			return nil, fmt.Errorf("failed to upload event image: %w", err)
		}
		uploaded = stored
		changes.ImageURL = &stored.URL
		changes.ImagePublicID = &stored.PublicID
	}

	updated, err := es.eventsRepo.UpdateEvent(ctx, id, requesterID, changes)
	if err != nil {
		if uploaded != nil {
			es.discardImage(ctx, id, uploaded.PublicID)
		}
		if errors.Is(err, models.ErrNoMatch) {
			return nil, es.classifyOwnerMiss(ctx, id, requesterID, changes.MaxAttendees)
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if uploaded != nil {
		es.discardImage(ctx, id, imagePublicID(existing))
	}

	resolved := es.resolveAfterWrite(ctx, updated)
	es.notifier.EventUpdated(resolved)
	es.logger.Info("Event updated", "event_id", id, "image_replaced", uploaded != nil)
	return resolved, nil
}

func (es *EventService) Delete(ctx context.Context, id, requesterID string) error {
	existing, err := es.getEvent(ctx, id)
	if err != nil {
		return err
	}
	if existing.Creator != requesterID {
		return ErrForbidden
	}

	deleted, err := es.eventsRepo.DeleteEvent(ctx, id, requesterID)
	if err != nil {
		if errors.Is(err, models.ErrNoMatch) {
			return es.classifyOwnerMiss(ctx, id, requesterID, nil)
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	es.discardImage(ctx, id, imagePublicID(deleted))
	es.notifier.EventDeleted(id)
	es.logger.Info("Event deleted", "event_id", id)
	return nil
}

// Join adds userID to the attendees with a single conditional write, so two callers
// racing for the last slot cannot both succeed.
func (es *EventService) Join(ctx context.Context, id, userID string) (*models.ResolvedEvent, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	for attempt := 0; attempt < maxMembershipAttempts; attempt++ {
		updated, err := es.eventsRepo.AddAttendee(ctx, id, userID)
		if err == nil {
			resolved := es.resolveAfterWrite(ctx, updated)
			es.notifier.AttendeesChanged(resolved)
			return resolved, nil
		}
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to join event: %w", err)
		}

		current, err := es.getEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.HasAttendee(userID) {
			return nil, ErrAlreadyMember
		}
		if current.IsFull() {
			return nil, ErrFull
		}
	}
	return nil, fmt.Errorf("failed to join event %s: membership kept changing", id)
}

func (es *EventService) Leave(ctx context.Context, id, userID string) (*models.ResolvedEvent, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	for attempt := 0; attempt < maxMembershipAttempts; attempt++ {
		updated, err := es.eventsRepo.RemoveAttendee(ctx, id, userID)
		if err == nil {
			resolved := es.resolveAfterWrite(ctx, updated)
			es.notifier.AttendeesChanged(resolved)
			return resolved, nil
		}
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to leave event: %w", err)
		}

		current, err := es.getEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.HasAttendee(userID) {
			return nil, ErrNotMember
		}
	}
	return nil, fmt.Errorf("failed to leave event %s: membership kept changing", id)
}

func (es *EventService) getEvent(ctx context.Context, id string) (*models.Event, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	event, err := es.eventsRepo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// classifyOwnerMiss explains why an owner-scoped conditional write matched nothing.
func (es *EventService) classifyOwnerMiss(ctx context.Context, id, requesterID string, maxAttendees *int) error {
	current, err := es.getEvent(ctx, id)
	if err != nil {
		return err
	}
	if current.Creator != requesterID {
		return ErrForbidden
	}
	if maxAttendees != nil && *maxAttendees < len(current.Attendees) {
		return capacityError(*maxAttendees, len(current.Attendees))
	}
	return fmt.Errorf("event %s changed during the update", id)
}

func (es *EventService) discardImage(ctx context.Context, eventID, publicID string) {
	if publicID == "" {
		return
	}
	if err := es.images.Delete(context.WithoutCancel(ctx), publicID); err != nil {
		es.logger.Warn("Failed to delete event image", "event_id", eventID, "public_id", publicID, "error", err)
	}
}

func (es *EventService) resolveAll(ctx context.Context, events []*models.Event) ([]*models.ResolvedEvent, error) {
	users, err := es.lookupUsers(ctx, events...)
	if err != nil {
		return nil, err
	}
	resolved := make([]*models.ResolvedEvent, 0, len(events))
	for _, event := range events {
		resolved = append(resolved, event.Resolve(users))
	}
	return resolved, nil
}

// resolveAfterWrite never fails: the write is committed, so users that cannot be
// looked up degrade to bare ids.
func (es *EventService) resolveAfterWrite(ctx context.Context, event *models.Event) *models.ResolvedEvent {
	users, err := es.lookupUsers(ctx, event)
	if err != nil {
		es.logger.Warn("Failed to resolve event users", "event_id", event.ID, "error", err)
	}
	return event.Resolve(users)
}

func (es *EventService) lookupUsers(ctx context.Context, events ...*models.Event) (map[string]*models.User, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, event := range events {
		for _, id := range event.UserIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	users, err := es.usersRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func capacityError(max, attendees int) error {
	return invalidf("maxAttendees %d is below the current attendee count %d", max, attendees)
}

func imagePublicID(event *models.Event) string {
	if event == nil {
		return ""
	}
	if event.ImagePublicID != "" {
		return event.ImagePublicID
	}
	return helpers.PublicIDFromURL(event.ImageURL)
}

type noopNotifier struct{}

func (noopNotifier) EventCreated(*models.ResolvedEvent)     {}
func (noopNotifier) EventUpdated(*models.ResolvedEvent)     {}
func (noopNotifier) EventDeleted(string)                    {}
func (noopNotifier) AttendeesChanged(*models.ResolvedEvent) {}
