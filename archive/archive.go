// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive publishes export files to an S3 compatible bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gimi9/geocode-web/export"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultURLTTL is how long a published link stays valid.
const DefaultURLTTL = 24 * time.Hour

// ErrDisabled is returned when no archive endpoint is configured.
var ErrDisabled = errors.New("export archive is disabled")

// Config configures the archive bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Published is an export stored in the bucket.
type Published struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store writes exports to a bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// New connects to the configured endpoint. It returns ErrDisabled when no
// endpoint is set.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, ErrDisabled
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating minio client")
	}

	return NewStore(client, cfg.Bucket, cfg.Prefix, cfg.URLTTL), nil
}

// NewStore wraps an existing client.
func NewStore(client *minio.Client, bucket, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		ttl:    ttl,
		now:    time.Now,
	}
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return eris.Wrapf(err, "checking bucket %s", s.bucket)
	}

	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrapf(err, "creating bucket %s", s.bucket)
	}

	return nil
}

// Publish uploads d under a unique key and returns a presigned download
// link.
func (s *Store) Publish(ctx context.Context, d *export.Download) (*Published, error) {
	if s == nil {
		return nil, ErrDisabled
	}

	key := s.objectKey(d.Filename)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename})

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(d.Body), int64(len(d.Body)), minio.PutObjectOptions{
		ContentType:        d.ContentType(),
		ContentDisposition: disposition,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "uploading %s", key)
	}

	params := url.Values{}
	params.Set("response-content-disposition", disposition)

	expiresAt := s.now().Add(s.ttl)

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, params)
	if err != nil {
		return nil, eris.Wrapf(err, "presigning %s", key)
	}

	zap.L().Info("published export", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int("bytes", len(d.Body)))

	return &Published{Key: key, URL: u.String(), ExpiresAt: expiresAt}, nil
}

// objectKey returns <prefix>/<yyyy>/<mm>/<dd>/<base>_<rand><ext>, the
// extension being everything after the first dot of filename.
func (s *Store) objectKey(filename string) string {
	base, ext := filename, ""
	if i := strings.Index(filename, "."); i > 0 {
		base, ext = filename[:i], filename[i:]
	}

	name := fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)

	return path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), name)
}
