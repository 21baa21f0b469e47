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

func (mdb *MongodbRepo) UpsertUser(ctx context.Context, user *User) (*User, bool, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	role := user.Role
	if role == "" {
		role = RoleCustomer
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"email":     user.Email,
			"name":      user.Name,
			"photoURL":  user.PhotoURL,
			"phone":     user.Phone,
			"role":      role,
			"status":    UserActive,
			"createdAt": now,
			"updatedAt": now,
		},
		"$set": bson.M{"lastLoginAt": now},
	}
	res, err := col.UpdateOne(ctx, bson.M{"email": user.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}

	stored, err := mdb.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, false, err
	}
	return stored, res.UpsertedCount > 0, nil
}

func (mdb *MongodbRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, err
	}
	var user User
	if err := col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (mdb *MongodbRepo) ListUsers(ctx context.Context) ([]*User, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (mdb *MongodbRepo) UpdateUserRole(ctx context.Context, email string, role Role) (*User, error) {
	return mdb.setUserField(ctx, email, "role", role)
}

func (mdb *MongodbRepo) UpdateUserStatus(ctx context.Context, email string, status UserStatus) (*User, error) {
	return mdb.setUserField(ctx, email, "status", status)
}

func (mdb *MongodbRepo) CountUsers(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return 0, err
	}
	count, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (mdb *MongodbRepo) setUserField(ctx context.Context, email, field string, value interface{}) (*User, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated User
	err = col.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{field: value, "updatedAt": time.Now()}},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user %s: %w", field, err)
	}
	return &updated, nil
}
