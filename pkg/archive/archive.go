// Package archive ships finished bottom-level sorted tables off-box to S3
// for cold storage, entirely outside the engine's durability and
// visibility guarantees: a table is archived only after it is already
// safely installed and referenced by the manifest, and a failed upload
// never fails the compaction that produced the table. Uploads run
// synchronously, so a slow upload delays the compaction call's return.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader ships a table's bytes to cold storage under key. Compaction
// calls this after publishing its new state, while still holding the
// engine's serialization mutex, and treats a returned error as advisory:
// it is logged, not propagated.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
}

// S3Uploader is the default Uploader, backed by an AWS S3 bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// Credentials optionally pins a static access key pair instead of letting
// the SDK's default chain (environment, shared config, EC2/ECS role)
// resolve one. Left zero, the default chain is used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Uploader builds an S3Uploader for bucket, resolving credentials and
// region through the SDK's standard default chain unless overridden:
// region is pinned explicitly when non-empty, and creds is used as a
// static provider when its AccessKeyID is non-empty.
func NewS3Uploader(ctx context.Context, bucket, prefix, region string, creds Credentials) (*S3Uploader, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	if creds.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
		optFns = append(optFns, awsconfig.WithCredentialsProvider(provider))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// objectKey joins prefix and key the way S3 expects: prefix-less keys are
// left untouched, since path.Join("", key) would otherwise clean leading
// "./" segments a caller might intentionally pass through.
func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// Upload streams r to s3://bucket/prefix/key.
func (u *S3Uploader) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	fullKey := objectKey(u.prefix, key)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &fullKey,
		Body:          r,
		ContentLength: &size,
	})
	if err != nil {
		return fmt.Errorf("archive: put object %s/%s: %w", u.bucket, fullKey, err)
	}
	return nil
}

// UploadFile opens path and uploads its full contents under key, a
// convenience for callers (the compaction executor) that only have a
// finished table's on-disk path rather than an open reader.
func UploadFile(ctx context.Context, u Uploader, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("archive: stat %s: %w", filePath, err)
	}
	return u.Upload(ctx, key, f, info.Size())
}
