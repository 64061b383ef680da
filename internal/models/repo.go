package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

func init() {
	// report json field names ("maxAttendees") rather than Go names in validation errors
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

var (
	// ErrNotFound is returned when the referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrNoMatch is returned by conditional writes whose predicate matched nothing.
	ErrNoMatch = errors.New("no document matched the update predicate")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate document")
)

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

// GetCollection returns a handle on the named collection of the configured database.
func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialised")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the indexes every collection relies on.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	if err := mdb.ensureEventIndexes(ctx); err != nil {
		return err
	}
	return mdb.ensureUserIndexes(ctx)
}
