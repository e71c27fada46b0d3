// Package objstore uploads report photos to object storage and returns the
// public URI stored on the report.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no storage backend is configured.
var ErrNotConfigured = errors.New("photo storage not configured")

// Uploader stores data under key and returns its public URI.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ObjectKey names the object for the index-th photo of a report. The key only
// depends on its inputs, so a retried upload overwrites the same object.
func ObjectKey(reportID string, stagedAt time.Time, index int, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("reports/%s/%d-%d%s", reportID, stagedAt.UnixMilli(), index, ext)
}

// Disabled is an Uploader that always fails with ErrNotConfigured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, []byte) (string, error) {
	return "", ErrNotConfigured
}
