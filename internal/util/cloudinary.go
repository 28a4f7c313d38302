package util

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forumsync/internal/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// deliveryTransformation is injected into returned URLs so comment images are
// served as resized WebP.
const deliveryTransformation = "f_webp,q_auto,w_1280"

type CloudinaryClient struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryClient(cfg *config.Config) (*CloudinaryClient, error) {
	if !cfg.CloudinaryEnabled() {
		return nil, errors.New("cloudinary credentials not configured")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryClient{
		cld:    cld,
		folder: cfg.CloudinaryFolder,
	}, nil
}

// UploadImage uploads a local image file and returns its public delivery URL.
func (c *CloudinaryClient) UploadImage(ctx context.Context, filePath string) (string, error) {
	result, err := c.cld.Upload.Upload(ctx, filePath, uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("error uploading to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("error uploading to cloudinary: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}

	return strings.Replace(result.SecureURL, "/upload/", "/upload/"+deliveryTransformation+"/", 1), nil
}
