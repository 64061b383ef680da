package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const UsersColName = "users"

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) error
	// UpsertUser stores name and email for an externally issued id, keeping createdAt.
	UpsertUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error)
}

func (mdb *MongodbRepo) ensureUserIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	}
	if _, err := col.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("error creating user indexes: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) CreateUser(ctx context.Context, user *User) error {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if _, err := col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) UpsertUser(ctx context.Context, user *User) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":      user.Name,
			"email":     user.Email,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result User
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, update, opts).Decode(&result); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("error upserting user: %w", err)
	}
	return &result, nil
}

func (mdb *MongodbRepo) GetUserByID(ctx context.Context, id string) (*User, error) {
	return mdb.findUser(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return mdb.findUser(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (mdb *MongodbRepo) findUser(ctx context.Context, filter bson.M) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var user User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

func (mdb *MongodbRepo) GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	// only the display attributes are needed to resolve references
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cursor, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}
