// Package storage publishes finished assets to S3 and builds their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by the publisher.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Publisher uploads files to a bucket. Without a reachable bucket it runs
// in mock mode and returns URLs of the same shape without uploading.
type S3Publisher struct {
	client     S3API
	bucket     string
	region     string
	cdnBaseURL string
	available  atomic.Bool
	logger     *slog.Logger
}

// Options configures an S3Publisher.
type Options struct {
	Bucket     string
	Region     string
	CDNBaseURL string // e.g. "https://assets.example.com"; overrides the bucket URL
}

// NewS3Publisher creates a publisher. A nil client starts in mock mode.
func NewS3Publisher(client S3API, opts Options, logger *slog.Logger) *S3Publisher {
	p := &S3Publisher{
		client:     client,
		bucket:     opts.Bucket,
		region:     opts.Region,
		cdnBaseURL: strings.TrimRight(opts.CDNBaseURL, "/"),
		logger:     logger.With("component", "storage"),
	}
	p.available.Store(client != nil)
	return p
}

// Probe checks bucket access with HeadBucket and switches to mock mode on failure.
func (p *S3Publisher) Probe(ctx context.Context) error {
	if p.client == nil {
		return errors.New("no S3 client configured")
	}
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		p.available.Store(false)
		p.logger.WarnContext(ctx, "S3 bucket not reachable, uploads will be mocked", "bucket", p.bucket, "error", err)
		return fmt.Errorf("head bucket %s: %w", p.bucket, err)
	}
	p.available.Store(true)
	p.logger.InfoContext(ctx, "S3 bucket reachable", "bucket", p.bucket)
	return nil
}

// Available reports whether uploads go to S3.
func (p *S3Publisher) Available() bool { return p.available.Load() }

// Publish uploads localPath under key and returns its public URL. In mock
// mode, or when the upload fails with a network error, it returns the URL the
// object would have had.
func (p *S3Publisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	if !p.Available() {
		url := p.URL(key)
		p.logger.InfoContext(ctx, "Mock S3 upload", "key", key, "url", url)
		return url, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(localPath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", filepath.Base(localPath), err)
	}

	start := time.Now()
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(ContentType(localPath)),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && ctx.Err() == nil {
			url := p.URL(key)
			p.logger.WarnContext(ctx, "S3 unreachable, returning mock URL", "key", key, "error", err)
			return url, nil
		}
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	url := p.URL(key)
	p.logger.InfoContext(ctx, "Uploaded asset", "key", key, "bytes", info.Size(), "elapsed", time.Since(start).Round(time.Millisecond))
	return url, nil
}

// URL returns the public URL for key.
func (p *S3Publisher) URL(key string) string {
	if p.cdnBaseURL != "" {
		return p.cdnBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ContentType picks the upload content type from the file extension.
func ContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

const keyTimeLayout = "20060102_150405"

// VideoKey is the object key for a session's rendered video.
func VideoKey(sessionID string, at time.Time) string {
	return "generated/videos/" + at.UTC().Format(keyTimeLayout) + "/" + sessionID + ".mp4"
}

// AudioKey is the object key for a session's speech track. ext includes the dot.
func AudioKey(sessionID, ext string, at time.Time) string {
	if ext == "" {
		ext = ".mp3"
	}
	return "generated/audio/" + at.UTC().Format(keyTimeLayout) + "/" + sessionID + ext
}
