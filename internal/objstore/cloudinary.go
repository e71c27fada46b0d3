package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryUploader stores photos as Cloudinary image assets.
type CloudinaryUploader struct {
	client cloudinaryAPI
	folder string
}

// NewCloudinaryUploader connects using a cloudinary:// URL.
func NewCloudinaryUploader(cloudinaryURL, folder string) (*CloudinaryUploader, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("%w: CLOUDINARY_URL not set", ErrNotConfigured)
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("initializing Cloudinary: %w", err)
	}
	return &CloudinaryUploader{client: &cld.Upload, folder: folder}, nil
}

// Upload ignores contentType; Cloudinary sniffs the image format.
func (u *CloudinaryUploader) Upload(ctx context.Context, key, _ string, data []byte) (string, error) {
	var file io.Reader = bytes.NewReader(data)
	res, err := u.client.Upload(ctx, file, uploader.UploadParams{
		Folder:       u.folder,
		PublicID:     strings.TrimSuffix(key, path.Ext(key)),
		ResourceType: "image",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
