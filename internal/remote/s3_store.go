package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the blob record as one JSON object per account.
type S3Store struct {
	client S3API
	bucket string
	key    string
	logger *events.Logger
}

// NewS3Store creates a store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, prefix, accountID string, logger *events.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, prefix, accountID, logger), nil
}

// NewS3StoreWithClient creates a store on an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix, accountID string, logger *events.Logger) *S3Store {
	if accountID == "" {
		accountID = "default"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		key:    path.Join(prefix, accountID, "vault.json"),
		logger: logger.WithField("component", "s3_store"),
	}
}

// Key returns the object key of the vault record.
func (s *S3Store) Key() string {
	return s.key
}

// Fetch downloads the blob. A missing object means no vault yet.
func (s *S3Store) Fetch(ctx context.Context) (*models.EncryptedBlob, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			s.logger.WithField("key", s.key).Debug("No vault object")
			return nil, nil
		}
		return nil, &models.NetworkError{Op: "s3 get object", Err: err}
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, &models.NetworkError{Op: "s3 read object", Err: err}
	}

	var record models.BlobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode s3 object: %v", models.ErrMalformedBlob, err)
	}
	return record.Blob()
}

// Put uploads the blob record.
func (s *S3Store) Put(ctx context.Context, blob *models.EncryptedBlob) error {
	data, err := json.Marshal(blob.Record())
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &models.NetworkError{Op: "s3 put object", Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"key":  s.key,
		"size": len(data),
	}).Debug("Wrote vault to S3")
	return nil
}
