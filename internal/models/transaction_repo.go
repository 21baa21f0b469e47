package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const transactionSucceeded = "succeeded"

func (mdb *MongodbRepo) InsertTransaction(ctx context.Context, txn *Transaction) (*Transaction, error) {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return nil, err
	}
	if txn.ID.IsZero() {
		txn.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, txn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("error inserting transaction: %w", err)
	}
	return txn, nil
}

func (mdb *MongodbRepo) GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*Transaction, error) {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return nil, err
	}
	var txn Transaction
	if err := col.FindOne(ctx, bson.M{"paymentIntentId": paymentIntentID}).Decode(&txn); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding transaction: %w", err)
	}
	return &txn, nil
}

func (mdb *MongodbRepo) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	return mdb.findTransactions(ctx, bson.M{})
}

func (mdb *MongodbRepo) ListTransactionsByEmail(ctx context.Context, email string) ([]*Transaction, error) {
	return mdb.findTransactions(ctx, bson.M{"email": email})
}

func (mdb *MongodbRepo) ListTransactionsByBookingID(ctx context.Context, bookingID string) ([]*Transaction, error) {
	return mdb.findTransactions(ctx, bson.M{"bookingId": bookingID})
}

func (mdb *MongodbRepo) MarkTransactionRefunded(ctx context.Context, paymentIntentID string, at time.Time) error {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"paymentIntentId": paymentIntentID},
		bson.M{"$set": bson.M{"refunded": true, "refundedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("error marking transaction refunded: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTransactionsRefundedByBookingID flags every not yet refunded transaction
// of the booking and reports how many changed.
func (mdb *MongodbRepo) MarkTransactionsRefundedByBookingID(ctx context.Context, bookingID string, at time.Time) (int64, error) {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return 0, err
	}
	res, err := col.UpdateMany(ctx,
		bson.M{"bookingId": bookingID, "refunded": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"refunded": true, "refundedAt": at}},
	)
	if err != nil {
		return 0, fmt.Errorf("error marking booking transactions refunded: %w", err)
	}
	return res.ModifiedCount, nil
}

func (mdb *MongodbRepo) MarkTransactionGatewayRefunded(ctx context.Context, paymentIntentID string, at time.Time) error {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"paymentIntentId": paymentIntentID},
		bson.M{"$set": bson.M{"gatewayRefundedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("error marking gateway refund: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) SumSucceededAmount(ctx context.Context, email string) (float64, error) {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return 0, err
	}

	match := bson.M{"status": transactionSucceeded, "refunded": bson.M{"$ne": true}}
	if email != "" {
		match["email"] = email
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error summing transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("error decoding transaction sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (mdb *MongodbRepo) findTransactions(ctx context.Context, filter bson.M) ([]*Transaction, error) {
	col, err := mdb.GetCollection(TransactionsColName)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding transactions: %w", err)
	}
	defer cursor.Close(ctx)

	txns := []*Transaction{}
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("error decoding transactions: %w", err)
	}
	return txns, nil
}
