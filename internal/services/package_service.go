package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
)

// LimitedPackagesCap bounds the featured package listing.
const LimitedPackagesCap = 6

// ImageUploader stores an image (data URI or remote URL) and returns its
// public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, source string) (string, error)
}

type PackageService struct {
	packages models.PackageRepo
	uploader ImageUploader
	hooks    Hooks
}

func NewPackageService(packages models.PackageRepo, uploader ImageUploader, hooks Hooks) *PackageService {
	return &PackageService{packages: packages, uploader: uploader, hooks: hooks}
}

var updatablePackageFields = map[string]struct{}{
	"title":       {},
	"description": {},
	"price":       {},
	"location":    {},
	"duration":    {},
	"category":    {},
	"images":      {},
	"guideEmail":  {},
}

func (s *PackageService) CreatePackage(ctx context.Context, pkg *models.Package) (*models.Package, error) {
	if pkg == nil {
		return nil, apperr.Validation("package is required")
	}
	pkg.Title = strings.TrimSpace(pkg.Title)
	pkg.Location = strings.TrimSpace(pkg.Location)
	pkg.Category = strings.TrimSpace(pkg.Category)
	pkg.GuideEmail = strings.TrimSpace(pkg.GuideEmail)
	if err := models.Validate.Struct(pkg); err != nil {
		return nil, validationError(err)
	}

	images, err := s.uploadImages(ctx, pkg.Images)
	if err != nil {
		return nil, err
	}
	pkg.Images = images

	now := s.hooks.now()
	pkg.BookingCount = 0
	pkg.Rating = 0
	pkg.ReviewCount = 0
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	created, err := s.packages.CreatePackage(ctx, pkg)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to create package")
	}
	s.hooks.dropAdminStats(ctx)
	return created, nil
}

// uploadImages pushes inline data URIs to the image host. Other entries are
// kept as given.
func (s *PackageService) uploadImages(ctx context.Context, images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if s.uploader == nil || !strings.HasPrefix(img, "data:") {
			out = append(out, img)
			continue
		}
		url, err := s.uploader.UploadImage(ctx, img)
		if err != nil {
			return nil, apperr.Dependency(err, "failed to upload image")
		}
		out = append(out, url)
	}
	return out, nil
}

func (s *PackageService) ListPackages(ctx context.Context, category, search string) ([]*models.Package, error) {
	pkgs, err := s.packages.ListPackages(ctx, models.PackageFilter{
		Category: strings.TrimSpace(category),
		Search:   strings.TrimSpace(search),
	})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list packages")
	}
	return pkgs, nil
}

func (s *PackageService) ListLimitedPackages(ctx context.Context) ([]*models.Package, error) {
	pkgs, err := s.packages.ListPackages(ctx, models.PackageFilter{Limit: LimitedPackagesCap})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list packages")
	}
	return pkgs, nil
}

func (s *PackageService) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	pid, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.GetPackageByID(ctx, pid)
	if err != nil {
		return nil, storeErr(err, "package not found", "failed to load package")
	}
	return pkg, nil
}

// UpdatePackage applies a partial update. Derived fields are dropped silently;
// unknown fields are rejected.
func (s *PackageService) UpdatePackage(ctx context.Context, id string, fields map[string]interface{}) (*models.Package, error) {
	pid, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	for _, f := range models.PackageDerivedFields {
		delete(fields, f)
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("no updatable fields provided")
	}

	var unknown []string
	for k := range fields {
		if _, ok := updatablePackageFields[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperr.Validation(fmt.Sprintf("unknown fields: %s", strings.Join(unknown, ", ")))
	}
	if err := s.validateUpdate(ctx, fields); err != nil {
		return nil, err
	}

	updated, err := s.packages.UpdatePackage(ctx, pid, fields)
	if err != nil {
		return nil, storeErr(err, "package not found", "failed to update package")
	}
	return updated, nil
}

func (s *PackageService) validateUpdate(ctx context.Context, fields map[string]interface{}) error {
	for _, k := range []string{"title", "location"} {
		if v, ok := fields[k]; ok {
			str, isStr := v.(string)
			if !isStr || strings.TrimSpace(str) == "" {
				return apperr.Validation(k + " must be a non-empty string")
			}
			fields[k] = strings.TrimSpace(str)
		}
	}
	if v, ok := fields["price"]; ok {
		price, isNum := v.(float64)
		if !isNum || price <= 0 {
			return apperr.Validation("price must be greater than 0")
		}
	}
	if v, ok := fields["guideEmail"]; ok {
		str, _ := v.(string)
		if err := models.Validate.Var(str, "omitempty,email"); err != nil {
			return apperr.Validation("guideEmail must be a valid email")
		}
	}
	if v, ok := fields["images"]; ok {
		raw, isList := v.([]interface{})
		if !isList {
			return apperr.Validation("images must be a list")
		}
		images := make([]string, 0, len(raw))
		for _, item := range raw {
			str, isStr := item.(string)
			if !isStr {
				return apperr.Validation("images must be a list of strings")
			}
			images = append(images, str)
		}
		uploaded, err := s.uploadImages(ctx, images)
		if err != nil {
			return err
		}
		fields["images"] = uploaded
	}
	return nil
}

func (s *PackageService) DeletePackage(ctx context.Context, id string) error {
	pid, err := parseID(id, "id")
	if err != nil {
		return err
	}
	if err := s.packages.DeletePackage(ctx, pid); err != nil {
		return storeErr(err, "package not found", "failed to delete package")
	}
	s.hooks.dropAdminStats(ctx)
	return nil
}
