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

func (mdb *MongodbRepo) InsertBooking(ctx context.Context, booking *Booking) (*Booking, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return nil, err
	}
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, booking); err != nil {
		return nil, fmt.Errorf("error inserting booking: %w", err)
	}
	return booking, nil
}

func (mdb *MongodbRepo) GetBookingByBookingID(ctx context.Context, bookingID string) (*Booking, error) {
	return mdb.findOneBooking(ctx, bson.M{"bookingId": bookingID}, nil)
}

func (mdb *MongodbRepo) FindLatestBooking(ctx context.Context, email string, packageID primitive.ObjectID) (*Booking, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return mdb.findOneBooking(ctx, bson.M{"email": email, "packageId": packageID}, opts)
}

func (mdb *MongodbRepo) ListBookingsByEmail(ctx context.Context, email string) ([]*Booking, error) {
	return mdb.findBookings(ctx, bson.M{"email": email})
}

func (mdb *MongodbRepo) ListBookings(ctx context.Context, status BookingStatus) ([]*Booking, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = bson.M{"$in": status.storedVariants()}
	}
	return mdb.findBookings(ctx, filter)
}

func (mdb *MongodbRepo) SetBookingStatus(ctx context.Context, bookingID string, status BookingStatus, except []BookingStatus) (bool, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return false, err
	}

	filter := bson.M{"bookingId": bookingID}
	if len(except) > 0 {
		var nin []string
		for _, s := range except {
			nin = append(nin, s.storedVariants()...)
		}
		filter["status"] = bson.M{"$nin": nin}
	}

	res, err := col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return false, fmt.Errorf("error updating booking status: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// Nothing matched: either the booking is missing or it is in an excluded state.
	if _, err := mdb.GetBookingByBookingID(ctx, bookingID); err != nil {
		return false, err
	}
	return false, nil
}

func (mdb *MongodbRepo) MarkBookingPaid(ctx context.Context, bookingID string, paidAt time.Time) error {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return err
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"paymentStatus": PaymentSucceeded,
			"paymentDate":   paidAt,
			"updatedAt":     time.Now(),
			"status": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{"$status", bson.A{"pending", "Pending", ""}}},
				BookingConfirmed,
				"$status",
			}},
		}}},
	}
	res, err := col.UpdateOne(ctx, bson.M{"bookingId": bookingID}, update)
	if err != nil {
		return fmt.Errorf("error updating booking payment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) SetBookingPaymentStatus(ctx context.Context, bookingID string, status PaymentStatus) error {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, bson.M{"bookingId": bookingID}, bson.M{"$set": bson.M{
		"paymentStatus": status,
		"updatedAt":     time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("error updating booking payment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) DeleteBookingByBookingID(ctx context.Context, bookingID string) error {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"bookingId": bookingID})
	if err != nil {
		return fmt.Errorf("error deleting booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) CountBookings(ctx context.Context, email string) (int64, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return 0, err
	}
	filter := bson.M{}
	if email != "" {
		filter["email"] = email
	}
	count, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting bookings: %w", err)
	}
	return count, nil
}

// NextPaidBooking returns the confirmed, paid booking with the earliest date on
// or after fromDate. Dates are stored as YYYY-MM-DD so string order is date order.
func (mdb *MongodbRepo) NextPaidBooking(ctx context.Context, email string, fromDate string) (*Booking, error) {
	filter := bson.M{
		"email":         email,
		"status":        bson.M{"$in": BookingConfirmed.storedVariants()},
		"paymentStatus": PaymentSucceeded,
		"date":          bson.M{"$gte": fromDate},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: 1}})
	return mdb.findOneBooking(ctx, filter, opts)
}

func (mdb *MongodbRepo) MonthlyBookingCounts(ctx context.Context, year int) (map[int]int64, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{
			"parsedDate": bson.M{"$dateFromString": bson.M{
				"dateString": "$date",
				"onError":    nil,
				"onNull":     nil,
			}},
		}}},
		{{Key: "$match", Value: bson.M{"parsedDate": bson.M{"$ne": nil}}}},
		{{Key: "$match", Value: bson.M{"$expr": bson.M{
			"$eq": bson.A{bson.M{"$year": "$parsedDate"}, year},
		}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$month": "$parsedDate"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating monthly bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Month int   `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error decoding monthly bookings: %w", err)
	}

	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.Month] = r.Count
	}
	return counts, nil
}

func (mdb *MongodbRepo) findOneBooking(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*Booking, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return nil, err
	}
	var booking Booking
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	if err := col.FindOne(ctx, filter, findOpts...).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding booking: %w", err)
	}
	booking.normalize()
	return &booking, nil
}

func (mdb *MongodbRepo) findBookings(ctx context.Context, filter bson.M) ([]*Booking, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	for _, b := range bookings {
		b.normalize()
	}
	return bookings, nil
}

const counterSeqField = "seq"

func (mdb *MongodbRepo) NextSequence(ctx context.Context, name string) (int64, error) {
	col, err := mdb.GetCollection(CountersColName)
	if err != nil {
		return 0, err
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = col.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{counterSeqField: 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error incrementing counter %s: %w", name, err)
	}
	return counter.Seq, nil
}
