package services

import (
	"context"
	"errors"
	"strings"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewStore interface {
	models.Transactor
	models.ReviewRepo
	models.PackageRepo
}

type ReviewService struct {
	store ReviewStore
	agg   *AggregateUpdater
	hooks Hooks
}

func NewReviewService(store ReviewStore, agg *AggregateUpdater, hooks Hooks) *ReviewService {
	return &ReviewService{store: store, agg: agg, hooks: hooks}
}

type AddReviewInput struct {
	PackageID string `json:"packageId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

type ReviewResult struct {
	Review  *models.Review `json:"review"`
	Package PackageRating  `json:"package"`
}

// AddReview stores the review and refreshes the package rating in the same
// transaction.
func (s *ReviewService) AddReview(ctx context.Context, in AddReviewInput) (*ReviewResult, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	packageID, err := parseID(in.PackageID, "packageId")
	if err != nil {
		return nil, err
	}
	email, err := requireEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetPackageByID(ctx, packageID); err != nil {
		return nil, storeErr(err, "package not found", "failed to load package")
	}

	review := &models.Review{
		ID:        primitive.NewObjectID(),
		PackageID: packageID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: s.hooks.now(),
	}

	var rating PackageRating
	err = s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.InsertReview(txCtx, review); err != nil {
			return err
		}
		var err error
		rating, err = s.agg.ReviewAdded(txCtx, packageID)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperr.NotFound("package not found")
		}
		return nil, apperr.Dependency(err, "failed to add review")
	}

	s.hooks.Logger.Debug().
		Str("package_id", packageID.Hex()).
		Float64("rating", rating.Rating).
		Int("review_count", rating.ReviewCount).
		Msg("package rating updated")
	return &ReviewResult{Review: review, Package: rating}, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, packageID string) ([]*models.Review, error) {
	pid, err := parseID(packageID, "packageId")
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviewsByPackage(ctx, pid)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list reviews")
	}
	return reviews, nil
}
