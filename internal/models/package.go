package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by repositories when the requested document does not exist.
var ErrNotFound = errors.New("document not found")

type Package struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title" validate:"required"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Price        float64            `bson:"price" json:"price" validate:"required,gt=0"`
	Location     string             `bson:"location" json:"location" validate:"required"`
	Duration     string             `bson:"duration,omitempty" json:"duration,omitempty"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
	Images       []string           `bson:"images,omitempty" json:"images,omitempty"`
	GuideEmail   string             `bson:"guideEmail,omitempty" json:"guideEmail,omitempty" validate:"omitempty,email"`
	BookingCount int                `bson:"bookingCount" json:"bookingCount"`
	Rating       float64            `bson:"rating" json:"rating"`
	ReviewCount  int                `bson:"reviewCount" json:"reviewCount"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PackageSnapshot is the subset of package fields attached to booking listings.
type PackageSnapshot struct {
	ID          primitive.ObjectID `json:"_id"`
	Title       string             `json:"title"`
	Location    string             `json:"location"`
	Price       float64            `json:"price"`
	Duration    string             `json:"duration,omitempty"`
	Category    string             `json:"category,omitempty"`
	Image       string             `json:"image,omitempty"`
	ReviewCount int                `json:"reviewCount"`
}

func (p *Package) Snapshot() *PackageSnapshot {
	if p == nil {
		return nil
	}
	snap := &PackageSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Location:    p.Location,
		Price:       p.Price,
		Duration:    p.Duration,
		Category:    p.Category,
		ReviewCount: p.ReviewCount,
	}
	if len(p.Images) > 0 {
		snap.Image = p.Images[0]
	}
	return snap
}

// PackageDerivedFields are maintained by the aggregate updater and are never
// accepted from clients.
var PackageDerivedFields = []string{"_id", "bookingCount", "rating", "reviewCount", "createdAt", "updatedAt"}

type PackageFilter struct {
	Category string
	Search   string
	Limit    int64
}

type PackageRepo interface {
	CreatePackage(ctx context.Context, pkg *Package) (*Package, error)
	GetPackageByID(ctx context.Context, id primitive.ObjectID) (*Package, error)
	GetPackagesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Package, error)
	ListPackages(ctx context.Context, filter PackageFilter) ([]*Package, error)
	UpdatePackage(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) (*Package, error)
	DeletePackage(ctx context.Context, id primitive.ObjectID) error
	// IncrementBookingCount applies delta to bookingCount. Decrements never take
	// the count below zero.
	IncrementBookingCount(ctx context.Context, id primitive.ObjectID, delta int) error
	SetPackageRating(ctx context.Context, id primitive.ObjectID, rating float64, reviewCount int) error
	CountPackages(ctx context.Context) (int64, error)
}
