package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps uploads in an S3 bucket under a key prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store wraps an existing client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StoreFromConfig loads the default AWS config for region.
func NewS3StoreFromConfig(ctx context.Context, bucket, prefix, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for upload store: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Open implements UploadStore.
func (s *S3Store) Open(ctx context.Context, uploadPath string) ([]byte, error) {
	rel, err := relativeUploadPath(uploadPath)
	if err != nil {
		return nil, err
	}
	key := s.prefix + rel
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Save implements UploadStore.
func (s *S3Store) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	_, name := storedName(filename)
	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s/%s: %w", s.bucket, key, err)
	}
	return UploadPrefix + name, nil
}

// List implements UploadStore.
func (s *S3Store) List(ctx context.Context, limit int) ([]StoredImage, error) {
	var items []StoredImage
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2 %s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if !isImageFilename(name) {
				continue
			}
			img := StoredImage{
				ID:   name,
				Name: displayName(name),
				URL:  UploadPrefix + name,
			}
			if obj.LastModified != nil {
				img.CreatedAt = obj.LastModified.UTC()
			}
			items = append(items, img)
		}
	}
	if items == nil {
		items = []StoredImage{}
	}
	return newestFirst(items, limit), nil
}
