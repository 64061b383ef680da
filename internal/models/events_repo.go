package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const EventsColName = "events"

type EventsRepo interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEventByID(ctx context.Context, id string) (*Event, error)
	SearchEvents(ctx context.Context, search, location string) ([]*Event, error)
	ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]*Event, int64, error)
	// UpdateEvent applies changes if the event is owned by creatorID and, when
	// MaxAttendees changes, the current attendee count still fits. ErrNoMatch otherwise.
	UpdateEvent(ctx context.Context, id, creatorID string, changes EventChanges) (*Event, error)
	// DeleteEvent removes the event if owned by creatorID and returns the removed document.
	DeleteEvent(ctx context.Context, id, creatorID string) (*Event, error)
	// AddAttendee appends userID only if absent and the event has a free slot.
	AddAttendee(ctx context.Context, id, userID string) (*Event, error)
	// RemoveAttendee pulls userID only if present.
	RemoveAttendee(ctx context.Context, id, userID string) (*Event, error)
}

// attendeeCount is the aggregation expression for the size of the attendee array.
var attendeeCount = bson.M{"$size": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}}}

// SearchFilter matches title or description containing search and location containing
// location, both as literal case-insensitive substrings. Empty inputs are ignored.
func SearchFilter(search, location string) bson.M {
	query := bson.M{}
	if search != "" {
		re := containsRegex(search)
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}
	if location != "" {
		query["location"] = containsRegex(location)
	}
	return query
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// BSON builds the list query: exact category and date >= MinDate, combined with AND.
func (f EventFilter) BSON() bson.M {
	query := bson.M{}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.MinDate != nil {
		query["date"] = bson.M{"$gte": *f.MinDate}
	}
	return query
}

// JoinFilter matches the event only while userID is absent and a slot is free.
func JoinFilter(id, userID string) bson.M {
	return bson.M{
		"_id":       id,
		"attendees": bson.M{"$ne": userID},
		"$expr":     bson.M{"$lt": bson.A{attendeeCount, "$maxAttendees"}},
	}
}

// LeaveFilter matches the event only while userID is an attendee.
func LeaveFilter(id, userID string) bson.M {
	return bson.M{"_id": id, "attendees": userID}
}

// OwnerFilter matches the event only for its creator. When maxAttendees is set the
// event must also still fit within the new capacity.
func OwnerFilter(id, creatorID string, maxAttendees *int) bson.M {
	query := bson.M{"_id": id, "creator": creatorID}
	if maxAttendees != nil {
		query["$expr"] = bson.M{"$lte": bson.A{attendeeCount, *maxAttendees}}
	}
	return query
}

// SetDocument renders the changes as a $set document stamped with now.
func (c EventChanges) SetDocument(now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if c.Title != nil {
		set["title"] = *c.Title
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.Date != nil {
		set["date"] = *c.Date
	}
	if c.Location != nil {
		set["location"] = *c.Location
	}
	if c.Category != nil {
		set["category"] = *c.Category
	}
	if c.MaxAttendees != nil {
		set["maxAttendees"] = *c.MaxAttendees
	}
	if c.ImageURL != nil {
		set["imageUrl"] = *c.ImageURL
	}
	if c.ImagePublicID != nil {
		set["imagePublicId"] = *c.ImagePublicID
	}
	return set
}

func (mdb *MongodbRepo) ensureEventIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("date_idx"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "date", Value: 1},
			},
			Options: options.Index().SetName("category_date_idx"),
		},
		{
			Keys:    bson.D{{Key: "creator", Value: 1}},
			Options: options.Index().SetName("creator_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating event indexes: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) CreateEvent(ctx context.Context, event *Event) error {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if event.Attendees == nil {
		// a nil slice is stored as null, which $size rejects
		event.Attendees = []string{}
	}
	if _, err := col.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting event: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetEventByID(ctx context.Context, id string) (*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var event Event
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding event: %w", err)
	}
	return &event, nil
}

func (mdb *MongodbRepo) SearchEvents(ctx context.Context, search, location string) ([]*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := col.Find(ctx, SearchFilter(search, location), opts)
	if err != nil {
		return nil, fmt.Errorf("error searching events: %w", err)
	}
	return decodeEvents(ctx, cursor)
}

func (mdb *MongodbRepo) ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]*Event, int64, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting collection: %w", err)
	}

	query := filter.BSON()
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing events: %w", err)
	}
	events, err := decodeEvents(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting events: %w", err)
	}
	return events, total, nil
}

func (mdb *MongodbRepo) UpdateEvent(ctx context.Context, id, creatorID string, changes EventChanges) (*Event, error) {
	update := bson.M{"$set": changes.SetDocument(time.Now())}
	return mdb.findOneAndUpdate(ctx, OwnerFilter(id, creatorID, changes.MaxAttendees), update)
}

func (mdb *MongodbRepo) DeleteEvent(ctx context.Context, id, creatorID string) (*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var deleted Event
	if err := col.FindOneAndDelete(ctx, OwnerFilter(id, creatorID, nil)).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("error deleting event: %w", err)
	}
	return &deleted, nil
}

func (mdb *MongodbRepo) AddAttendee(ctx context.Context, id, userID string) (*Event, error) {
	update := bson.M{
		"$push": bson.M{"attendees": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	return mdb.findOneAndUpdate(ctx, JoinFilter(id, userID), update)
}

func (mdb *MongodbRepo) RemoveAttendee(ctx context.Context, id, userID string) (*Event, error) {
	update := bson.M{
		"$pull": bson.M{"attendees": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	return mdb.findOneAndUpdate(ctx, LeaveFilter(id, userID), update)
}

func (mdb *MongodbRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result Event
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("error updating event: %w", err)
	}
	return &result, nil
}

func decodeEvents(ctx context.Context, cursor *mongo.Cursor) ([]*Event, error) {
	defer cursor.Close(ctx)

	events := make([]*Event, 0)
	for cursor.Next(ctx) {
		var event Event
		if err := cursor.Decode(&event); err != nil {
			return nil, fmt.Errorf("error decoding event: %w", err)
		}
		events = append(events, &event)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return events, nil
}
