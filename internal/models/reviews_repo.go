package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) InsertReview(ctx context.Context, review *Review) (*Review, error) {
	col, err := mdb.GetCollection(ReviewsColName)
	if err != nil {
		return nil, err
	}
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to insert review into database: %w", err)
	}
	return review, nil
}

func (mdb *MongodbRepo) ListReviewsByPackage(ctx context.Context, packageID primitive.ObjectID) ([]*Review, error) {
	col, err := mdb.GetCollection(ReviewsColName)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := col.Find(ctx, bson.M{"packageId": packageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []*Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

// ReviewAggregate recomputes the mean rating and count from every stored review
// of the package. A package without reviews yields the zero value.
func (mdb *MongodbRepo) ReviewAggregate(ctx context.Context, packageID primitive.ObjectID) (ReviewStats, error) {
	col, err := mdb.GetCollection(ReviewsColName)
	if err != nil {
		return ReviewStats{}, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"packageId": packageID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return ReviewStats{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return ReviewStats{}, fmt.Errorf("failed to decode review aggregate: %w", err)
	}
	if len(rows) == 0 {
		return ReviewStats{}, nil
	}
	return ReviewStats{Average: rows[0].Average, Count: rows[0].Count}, nil
}
