package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const PackagesFolder = "packages"

// CloudinaryUploader stores package images and returns their secure URLs.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
	tags   []string
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary, folder string) *CloudinaryUploader {
	if folder == "" {
		folder = PackagesFolder
	}
	return &CloudinaryUploader{cld: cld, folder: folder, tags: []string{"tourbook"}}
}

func (u *CloudinaryUploader) UploadImage(ctx context.Context, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("image source is empty")
	}
	res, err := u.cld.Upload.Upload(ctx, source, uploader.UploadParams{
		Folder: u.folder,
		Tags:   u.tags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
