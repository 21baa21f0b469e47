package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var collectionIndexes = map[string][]mongo.IndexModel{
	BookingsColName: {
		{Keys: bson.D{{Key: "bookingId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "packageId", Value: 1}}},
	},
	ReviewsColName: {
		{Keys: bson.D{{Key: "packageId", Value: 1}, {Key: "createdAt", Value: -1}}},
	},
	TransactionsColName: {
		{Keys: bson.D{{Key: "paymentIntentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "bookingId", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	},
	UsersColName: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates the indexes every collection relies on. Existing
// indexes with the same definition are left untouched.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	for colName, models := range collectionIndexes {
		col, err := mdb.GetCollection(colName)
		if err != nil {
			return err
		}
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", colName, err)
		}
	}
	return nil
}
