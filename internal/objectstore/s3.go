package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nexus-go/internal/nexus"
)

// S3Store implements nexus.ObjectStore against S3 or any S3-compatible
// endpoint (MinIO etc.). Objects are keyed by their content hash under a
// fixed prefix, so uploads are idempotent: identical bytes land on the same
// key and the same locator.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	minSize  int64
}

var _ nexus.ObjectStore = (*S3Store)(nil)

// S3Options configure an S3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // non-empty for S3-compatible stores
	MinSize  int64
}

// NewS3Store builds a client from the ambient AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 object store requires a bucket")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		minSize:  opts.MinSize,
	}, nil
}

func (s *S3Store) key(contentHash string) string {
	return path.Join(s.prefix, contentHash)
}

func (s *S3Store) Upload(ctx context.Context, data []byte, name string) (*nexus.UploadResult, error) {
	if err := CheckPayload(data, s.minSize); err != nil {
		return nil, err
	}

	hash := sha256Hex(data)
	key := s.key(hash)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return nil, nexus.E(nexus.ErrUploadFailed, "uploading to s3", err)
	}

	return &nexus.UploadResult{
		Locator:     key,
		ContentHash: hash,
		Size:        int64(len(data)),
	}, nil
}

func (s *S3Store) Retrieve(ctx context.Context, locator string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "fetching from s3", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3 object body: %w", err)
	}
	return data, nil
}

// Ping verifies the bucket is reachable with the configured credentials.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "s3 bucket unreachable", err)
	}
	return nil
}
