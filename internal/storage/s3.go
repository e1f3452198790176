package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/metrics"
)

// S3Client wraps the AWS S3 client for fetching source PDFs and publishing
// generated parts.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
	prefix     string
}

// NewS3Client creates a new S3 client bound to bucketName; prefix is
// prepended to every uploaded key.
func NewS3Client(ctx context.Context, bucketName, prefix string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}, nil
}

// Bucket returns the bound bucket name.
func (s *S3Client) Bucket() string { return s.bucketName }

// ParseURL splits s3://bucket/key.
func ParseURL(s3url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if !strings.HasPrefix(s3url, "s3://") || slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	return path[:slash], path[slash+1:], nil
}

// ObjectKey builds the key for a generated file of a job.
func ObjectKey(prefix, jobID, name string) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if jobID != "" {
		parts = append(parts, jobID)
	}
	parts = append(parts, filepath.Base(name))
	return strings.Join(parts, "/")
}

// DownloadToFile streams s3://bucket/key into w.
func DownloadToFile(ctx context.Context, s3url string, w io.Writer) error {
	bucket, key, err := ParseURL(s3url)
	if err != nil {
		return err
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	out, err := s3.NewFromConfig(cfg).GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read S3 object: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Msg("downloaded s3 pdf")
	return nil
}

// Publish uploads each local file under <prefix>/<jobID>/ and returns
// their s3:// URLs in the same order.
func (s *S3Client) Publish(ctx context.Context, jobID string, files []string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, path := range files {
		key := ObjectKey(s.prefix, jobID, path)
		if err := s.upload(ctx, key, path); err != nil {
			return urls, err
		}
		urls = append(urls, fmt.Sprintf("s3://%s/%s", s.bucketName, key))
	}
	return urls, nil
}

func (s *S3Client) upload(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/pdf"),
		Metadata:    map[string]string{"name": filepath.Base(path)},
	})
	metrics.IncUpload(err == nil)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Info().Str("bucket", s.bucketName).Str("key", key).Msg("uploaded generated pdf")
	return nil
}

// HeadBucket checks that the bucket is reachable.
func (s *S3Client) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}
