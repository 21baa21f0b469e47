package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PackageID primitive.ObjectID `bson:"packageId" json:"packageId"`
	Rating    int                `bson:"rating" json:"rating" validate:"required,min=1,max=5"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ReviewStats is the aggregate of every review written for one package.
type ReviewStats struct {
	Average float64
	Count   int
}

type ReviewRepo interface {
	InsertReview(ctx context.Context, review *Review) (*Review, error)
	ListReviewsByPackage(ctx context.Context, packageID primitive.ObjectID) ([]*Review, error)
	ReviewAggregate(ctx context.Context, packageID primitive.ObjectID) (ReviewStats, error)
}
