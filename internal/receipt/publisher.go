package receipt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Folder is the key prefix receipts are stored under.
const Folder = "receipts"

// Publisher stores a rendered receipt and returns a URL the customer can open.
type Publisher interface {
	Publish(ctx context.Context, filename string, body []byte) (string, error)
}

// S3API is the subset of the S3 client used by S3Publisher.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Publisher writes receipts to an S3 bucket. If bucket is empty, it is
// disabled and Publish fails.
type S3Publisher struct {
	bucket        string
	publicBaseURL string
	s3Client      S3API
	logger        *logging.Logger
}

// NewS3Publisher creates a publisher. publicBaseURL, when set, replaces the
// virtual-hosted bucket URL in returned links (for a CDN in front of the bucket).
func NewS3Publisher(s3Client S3API, bucket, publicBaseURL string, logger *logging.Logger) *S3Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Publisher{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		s3Client:      s3Client,
		logger:        logger,
	}
}

// Enabled returns true if a bucket and client are configured.
func (p *S3Publisher) Enabled() bool {
	return p != nil && p.bucket != "" && p.s3Client != nil
}

func (p *S3Publisher) Publish(ctx context.Context, filename string, body []byte) (string, error) {
	if !p.Enabled() {
		return "", fmt.Errorf("receipt: s3 publisher not configured")
	}
	key := objectKey(filename)
	_, err := p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("receipt: s3 put %s: %w", key, err)
	}
	url := p.url(key)
	p.logger.Info("receipt published", "s3_key", key, "url", url, "bytes", len(body))
	return url, nil
}

// Open streams a previously published receipt back by filename.
func (p *S3Publisher) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("receipt: s3 publisher not configured")
	}
	key := objectKey(filename)
	out, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("receipt: s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

func (p *S3Publisher) url(key string) string {
	if p.publicBaseURL != "" {
		return p.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.bucket, key)
}

// objectKey keeps only the base name so callers cannot escape the folder.
func objectKey(filename string) string {
	return Folder + "/" + path.Base(strings.TrimSpace(filename))
}
