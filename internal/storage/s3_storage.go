package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"strings"
	"time"

	"enoriel/autos/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadURLExpiry = 15 * time.Minute

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// IAttachmentStorage holds message attachments in S3.
type IAttachmentStorage interface {
	// PresignUpload returns a PUT URL for a new attachment on bookingID and the object key
	// to reference from the message.
	PresignUpload(ctx context.Context, bookingID uint64, filename, contentType string) (string, string, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
	PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

type s3Storage struct {
	bucket        string
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

func NewS3Storage(cfg *config.Config) (IAttachmentStorage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		bucket:        cfg.AwsS3Bucket,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

// AttachmentKey builds attachments/<booking>/<uuid>_<name> with the name reduced to a
// safe base name.
func AttachmentKey(bookingID uint64, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("attachments/%d/%s_%s", bookingID, uuid.NewString(), name)
}

// IsAttachmentKey reports whether key was issued for bookingID.
func IsAttachmentKey(bookingID uint64, key string) bool {
	return strings.HasPrefix(key, fmt.Sprintf("attachments/%d/", bookingID)) && !strings.Contains(key, "..")
}

func (s *s3Storage) PresignUpload(ctx context.Context, bookingID uint64, filename, contentType string) (string, string, error) {
	objectKey := AttachmentKey(bookingID, filename)
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadURLExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}
	log.Printf("Generated presigned upload URL for key: %s", objectKey)
	return req.URL, objectKey, nil
}

// GetObject returns the body, its size and content type. The caller closes the body.
func (s *s3Storage) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType), nil
}

func (s *s3Storage) PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}
