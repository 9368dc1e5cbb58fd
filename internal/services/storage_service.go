// internal/services/storage_service.go
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/datamartlabs/datamart-backend/internal/config"
)

// StorageService resolves opaque content references to downloadable
// URLs. The ledger engine never sees this; it hands out the reference
// string and delivery happens here.
type StorageService struct {
	s3Client *s3.S3
	cfg      *config.Config
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{cfg: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		cfg:      cfg,
	}, nil
}

// ResolveContentRef turns an s3://bucket/key reference into a
// time-limited presigned URL. Anything else, or a service without S3
// credentials, passes the reference through untouched.
func (s *StorageService) ResolveContentRef(ref string) (string, error) {
	bucket, key, ok := parseS3Ref(ref)
	if !ok || s.s3Client == nil {
		return ref, nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(time.Duration(s.cfg.AWS.PresignTTL) * time.Minute)
	if err != nil {
		return "", fmt.Errorf("failed to presign content URL: %w", err)
	}

	return url, nil
}

func parseS3Ref(ref string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", false
	}

	rest := strings.TrimPrefix(ref, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}
