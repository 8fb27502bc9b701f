package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store writes document bytes to an S3-compatible bucket via minio-go,
// using "s3://{bucket}/{key}" URIs.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect s3: %w", err)
	}
	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) key(space string, documentID int64, filename string) string {
	return fmt.Sprintf("%s/%d-%s", space, documentID, sanitizeName(filename))
}

func (s *S3Store) Put(ctx context.Context, space string, documentID int64, filename string, content io.Reader, size int64, contentType string) (string, error) {
	key := s.key(space, documentID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("blobstore: put %s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Store) Get(ctx context.Context, storageURI string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(storageURI)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

func (s *S3Store) Delete(ctx context.Context, storageURI string) error {
	bucket, key, err := parseS3URI(storageURI)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("blobstore: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", ErrUnsupportedScheme
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("blobstore: malformed s3 uri %q", uri)
	}
	return parts[0], parts[1], nil
}
