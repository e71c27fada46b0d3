package objstore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

func TestObjectKey(t *testing.T) {
	staged := time.UnixMilli(1715342400123)
	tests := []struct {
		name     string
		index    int
		filename string
		want     string
	}{
		{"jpeg", 0, "foto.JPG", "reports/r-1/1715342400123-0.jpg"},
		{"png", 2, "calle.png", "reports/r-1/1715342400123-2.png"},
		{"no extension", 1, "upload", "reports/r-1/1715342400123-1.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey("r-1", staged, tt.index, tt.filename); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if ObjectKey("r-1", staged, 0, "a.jpg") != ObjectKey("r-1", staged, 0, "a.jpg") {
		t.Error("keys must be stable for the same inputs")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Upload(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want string
	}{
		{
			name: "aws",
			opts: S3Options{Bucket: "fotos", Region: "sa-east-1"},
			want: "https://fotos.s3.sa-east-1.amazonaws.com/reports/a/1-0.jpg",
		},
		{
			name: "compatible endpoint",
			opts: S3Options{Bucket: "fotos", Endpoint: "https://xyz.supabase.co/storage/v1/s3/"},
			want: "https://xyz.supabase.co/storage/v1/s3/fotos/reports/a/1-0.jpg",
		},
		{
			name: "public base url",
			opts: S3Options{Bucket: "fotos", PublicBaseURL: "https://cdn.example.com/public/"},
			want: "https://cdn.example.com/public/reports/a/1-0.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeS3{}
			u := newS3Uploader(fake, tt.opts)
			uri, err := u.Upload(context.Background(), "reports/a/1-0.jpg", "image/jpeg", []byte("jpeg"))
			if err != nil {
				t.Fatal(err)
			}
			if uri != tt.want {
				t.Errorf("uri = %q, want %q", uri, tt.want)
			}
			if aws.ToString(fake.input.Bucket) != "fotos" || aws.ToString(fake.input.ContentType) != "image/jpeg" {
				t.Errorf("unexpected input: %+v", fake.input)
			}
			if string(fake.body) != "jpeg" {
				t.Errorf("body = %q", fake.body)
			}
		})
	}
}

func TestS3Uploader_Error(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	u := newS3Uploader(fake, S3Options{Bucket: "fotos", Region: "us-east-1"})
	if _, err := u.Upload(context.Background(), "k", "", nil); err == nil {
		t.Error("expected error")
	}
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	if _, err := NewS3Uploader(context.Background(), S3Options{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

type fakeCloudinary struct {
	params uploader.UploadParams
	result *uploader.UploadResult
	err    error
}

func (f *fakeCloudinary) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.params = params
	return f.result, f.err
}

func TestCloudinaryUploader_Upload(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/x/image/upload/v1/reclamos/reports/a/1-0.jpg"}}
	u := &CloudinaryUploader{client: fake, folder: "reclamos"}

	uri, err := u.Upload(context.Background(), "reports/a/1-0.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if uri != fake.result.SecureURL {
		t.Errorf("uri = %q", uri)
	}
	if fake.params.PublicID != "reports/a/1-0" || fake.params.Folder != "reclamos" {
		t.Errorf("params = %+v", fake.params)
	}
	if fake.params.Overwrite == nil || !*fake.params.Overwrite {
		t.Error("retries must overwrite the same asset")
	}
}

func TestCloudinaryUploader_ErrorResponse(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}}
	u := &CloudinaryUploader{client: fake}
	if _, err := u.Upload(context.Background(), "k.jpg", "", []byte("x")); err == nil {
		t.Error("expected error from error response")
	}
}

func TestNewCloudinaryUploader_NotConfigured(t *testing.T) {
	if _, err := NewCloudinaryUploader("", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Upload(context.Background(), "k", "", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
