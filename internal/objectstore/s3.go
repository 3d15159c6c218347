package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3 stores objects in an S3 (or S3-compatible) bucket.
type S3 struct {
	bucket     string
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewS3 uses the default AWS credential chain. A non-empty endpoint switches
// to path-style addressing for S3-compatible servers.
func NewS3(bucket, region, endpoint string) (*S3, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	config := &aws.Config{}
	if region != "" {
		config.Region = aws.String(region)
	}
	if endpoint != "" {
		config.Endpoint = aws.String(endpoint)
		config.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &S3{
		bucket:     bucket,
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

func (s *S3) Upload(ctx context.Context, localPath, objectPath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer func() {
		_ = in.Close()
	}()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
		Body:   in,
	})
	return errors.Wrapf(err, "upload s3://%s/%s", s.bucket, objectPath)
}

func (s *S3) Download(ctx context.Context, objectPath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(localPath))
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", localPath)
	}
	_, err = s.downloader.DownloadWithContext(ctx, out, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "download s3://%s/%s", s.bucket, objectPath)
	}
	return errors.Wrapf(out.Close(), "close %s", localPath)
}

func (s *S3) Close() error { return nil }
