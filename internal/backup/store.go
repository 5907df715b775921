package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/obsidian-tools/plugin-manager/internal/vault"
)

// Store keeps snapshots of installs that are about to be overwritten.
type Store interface {
	Save(ctx context.Context, key string, archive []byte, checksum string) error
	Load(ctx context.Context, key string) ([]byte, error)
}

var ErrChecksumMismatch = errors.New("checksum mismatch")

// ValidateKey checks that every segment of key is a plain name, so a key
// never leaves the store's directory or prefix.
func ValidateKey(key string) error {
	for _, seg := range strings.Split(key, "/") {
		if err := vault.ValidateName(seg); err != nil {
			return fmt.Errorf("invalid backup key %q: %w", key, err)
		}
	}
	return nil
}

// LocalStore writes archives into a directory of the vault, each next to a
// <key>.sha256 file.
type LocalStore struct {
	adapter vault.Adapter
	dir     string
}

func NewLocalStore(adapter vault.Adapter, dir string) *LocalStore {
	return &LocalStore{adapter: adapter, dir: dir}
}

func (s *LocalStore) Save(ctx context.Context, key string, archive []byte, checksum string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	archivePath := path.Join(s.dir, key)
	if err := s.adapter.Mkdir(ctx, path.Dir(archivePath)); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := s.adapter.Write(ctx, archivePath, archive); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := s.adapter.Write(ctx, archivePath+".sha256", []byte(checksum+"\n")); err != nil {
		return fmt.Errorf("failed to write backup checksum: %w", err)
	}
	return nil
}

func (s *LocalStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	archivePath := path.Join(s.dir, key)
	archive, err := s.adapter.Read(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	checksum, err := s.adapter.Read(ctx, archivePath+".sha256")
	if err != nil {
		return nil, err
	}
	if err := verify(archive, strings.TrimSpace(string(checksum))); err != nil {
		return nil, err
	}
	return archive, nil
}

// S3Store uploads archives to an S3 compatible bucket. The checksum is kept
// in the object metadata.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *S3Store) Save(ctx context.Context, key string, archive []byte, checksum string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/gzip"),
		Metadata: map[string]string{
			"checksum": checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}
	defer res.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if checksum := res.Metadata["checksum"]; checksum != "" {
		if err := verify(buf.Bytes(), checksum); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
