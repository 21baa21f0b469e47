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

func (mdb *MongodbRepo) CreatePackage(ctx context.Context, pkg *Package) (*Package, error) {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return nil, err
	}
	if pkg.ID.IsZero() {
		pkg.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, pkg); err != nil {
		return nil, fmt.Errorf("error inserting package: %w", err)
	}
	return pkg, nil
}

func (mdb *MongodbRepo) GetPackageByID(ctx context.Context, id primitive.ObjectID) (*Package, error) {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return nil, err
	}
	var pkg Package
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&pkg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding package: %w", err)
	}
	return &pkg, nil
}

func (mdb *MongodbRepo) GetPackagesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Package, error) {
	out := make(map[primitive.ObjectID]*Package, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("error finding packages: %w", err)
	}
	defer cursor.Close(ctx)

	var packages []*Package
	if err := cursor.All(ctx, &packages); err != nil {
		return nil, fmt.Errorf("error decoding packages: %w", err)
	}
	for _, p := range packages {
		out[p.ID] = p
	}
	return out, nil
}

func (mdb *MongodbRepo) ListPackages(ctx context.Context, filter PackageFilter) ([]*Package, error) {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return nil, err
	}

	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"location": pattern},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing packages: %w", err)
	}
	defer cursor.Close(ctx)

	packages := []*Package{}
	if err := cursor.All(ctx, &packages); err != nil {
		return nil, fmt.Errorf("error decoding packages: %w", err)
	}
	return packages, nil
}

func (mdb *MongodbRepo) UpdatePackage(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) (*Package, error) {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Package
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating package: %w", err)
	}
	return &updated, nil
}

func (mdb *MongodbRepo) DeletePackage(ctx context.Context, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("error deleting package: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementBookingCount returns ErrNotFound when an increment targets a missing
// package. A decrement that matches nothing (missing package or count already
// at zero) is a no-op.
func (mdb *MongodbRepo) IncrementBookingCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	if delta == 0 {
		return nil
	}
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["bookingCount"] = bson.M{"$gte": -delta}
	}
	res, err := col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"bookingCount": delta}})
	if err != nil {
		return fmt.Errorf("error updating booking count: %w", err)
	}
	if delta > 0 && res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) SetPackageRating(ctx context.Context, id primitive.ObjectID, rating float64, reviewCount int) error {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"rating":      rating,
		"reviewCount": reviewCount,
	}})
	if err != nil {
		return fmt.Errorf("error updating package rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) CountPackages(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(PackagesColName)
	if err != nil {
		return 0, err
	}
	count, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting packages: %w", err)
	}
	return count, nil
}
