package models

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

func init() {
	// Report json field names so validation messages match request bodies.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

const (
	PackagesColName     = "packages"
	BookingsColName     = "bookings"
	CountersColName     = "counters"
	ReviewsColName      = "reviews"
	TransactionsColName = "transactions"
	UsersColName        = "users"
)

// Transactor runs fn as one atomic unit of work. Repository calls made with the
// context handed to fn join the unit.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
	transactions  bool
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string, transactions bool) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
		transactions:  transactions,
	}
}

func (mdb *MongodbRepo) GetCollection(colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// WithTransaction wraps fn in a driver session transaction. The driver retries
// fn on transient transaction errors, so fn must be safe to run more than once.
// Standalone servers cannot run transactions; with transactions disabled fn
// runs directly against the store.
func (mdb *MongodbRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !mdb.transactions {
		return fn(ctx)
	}
	if mdb.mongodbClient == nil {
		return fmt.Errorf("mongodb client is not initialized")
	}

	session, err := mdb.mongodbClient.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// ParseObjectID converts a client supplied id into the typed representation
// used by every collection.
func ParseObjectID(raw string) (primitive.ObjectID, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "\"'")
	if trimmed == "" {
		return primitive.NilObjectID, fmt.Errorf("id is required")
	}
	id, err := primitive.ObjectIDFromHex(trimmed)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id format: %q", raw)
	}
	return id, nil
}
