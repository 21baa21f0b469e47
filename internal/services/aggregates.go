package services

import (
	"context"

	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AggregateUpdater maintains the derived fields on packages. Callers run it
// inside the transaction that performs the triggering write.
type AggregateUpdater struct {
	packages models.PackageRepo
	reviews  models.ReviewRepo
}

func NewAggregateUpdater(packages models.PackageRepo, reviews models.ReviewRepo) *AggregateUpdater {
	return &AggregateUpdater{packages: packages, reviews: reviews}
}

func (a *AggregateUpdater) BookingCreated(ctx context.Context, packageID primitive.ObjectID) error {
	return a.packages.IncrementBookingCount(ctx, packageID, 1)
}

// BookingCancelled decrements bookingCount, never below zero.
func (a *AggregateUpdater) BookingCancelled(ctx context.Context, packageID primitive.ObjectID) error {
	return a.packages.IncrementBookingCount(ctx, packageID, -1)
}

// ReviewAdded recomputes rating and reviewCount from every stored review.
func (a *AggregateUpdater) ReviewAdded(ctx context.Context, packageID primitive.ObjectID) (PackageRating, error) {
	stats, err := a.reviews.ReviewAggregate(ctx, packageID)
	if err != nil {
		return PackageRating{}, err
	}
	rating := RoundRating(stats.Average)
	if err := a.packages.SetPackageRating(ctx, packageID, rating, stats.Count); err != nil {
		return PackageRating{}, err
	}
	return PackageRating{Rating: rating, ReviewCount: stats.Count}, nil
}

type PackageRating struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
}

// RoundRating rounds to one decimal place, halves away from zero.
func RoundRating(avg float64) float64 {
	return decimal.NewFromFloat(avg).Round(1).InexactFloat64()
}
