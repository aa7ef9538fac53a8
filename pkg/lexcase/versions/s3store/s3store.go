// Package s3store keeps document versions as JSON objects in an S3 bucket.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// Client is the subset of the S3 API the store needs.
type Client interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config selects the bucket and credentials.
type Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Store implements versions.Store. Objects are written with a conditional
// put so an existing version is never overwritten.
type Store struct {
	client Client
	bucket string
	prefix string
}

var _ versions.Store = (*Store)(nil)

// New wraps an existing client.
func New(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Open loads AWS configuration and creates a Store. Static credentials are
// used when both keys are set, otherwise the default provider chain.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not set: %w", internalerr.ErrInvalidConfig)
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

func (s *Store) key(docID, versionID string) string {
	return s.prefix + docID + "/" + versionID + ".json"
}

func (s *Store) Put(ctx context.Context, v versions.Version, text string) error {
	data, err := json.Marshal(versions.FileRecord{Metadata: v, Text: text})
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(v.DocID, v.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("version %s: %w", v.ID, internalerr.ErrDuplicate)
		}
		return fmt.Errorf("upload version to S3: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, docID, versionID string) (versions.Version, string, error) {
	rec, err := s.read(ctx, s.key(docID, versionID))
	if err != nil {
		return versions.Version{}, "", err
	}
	return rec.Metadata, rec.Text, nil
}

func (s *Store) List(ctx context.Context, docID string) ([]versions.Version, error) {
	prefix := s.prefix + docID + "/"
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []versions.Version
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list versions in S3: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			rec, err := s.read(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, rec.Metadata)
		}
	}
	versions.Sort(out)
	return out, nil
}

// Delete removes one version object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, docID, versionID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(docID, versionID)),
	})
	if err != nil {
		return fmt.Errorf("delete version from S3: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) (versions.FileRecord, error) {
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return versions.FileRecord{}, fmt.Errorf("version %s: %w", key, internalerr.ErrNotFound)
		}
		return versions.FileRecord{}, fmt.Errorf("download version from S3: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return versions.FileRecord{}, fmt.Errorf("read version object: %w", err)
	}
	var rec versions.FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return versions.FileRecord{}, fmt.Errorf("parse version object %s: %w", key, err)
	}
	return rec, nil
}
