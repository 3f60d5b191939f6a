package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/spindle/internal/config"
	"github.com/vango-dev/spindle/internal/errors"
)

// Target stores rendered pages.
type Target interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	String() string
}

// Dir writes pages below a local directory.
type Dir struct {
	root string
}

// NewDir returns a Target writing below root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Put writes body to root/key through a temporary file so readers never see
// a partial page.
func (d *Dir) Put(_ context.Context, key, _ string, body []byte) error {
	dst := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".spindle-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (d *Dir) String() string { return d.root }

// PutObjectAPI is the part of the S3 client used by S3. *s3.Client
// implements it.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes pages to a bucket.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3 returns a Target writing to bucket with every key under prefix.
func NewS3(client PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads body.
func (s *S3) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path.Join(s.prefix, key)),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return err
}

func (s *S3) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// NewS3Client returns a client for region using the standard AWS_*
// credential variables.
func NewS3Client(region string) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("publish: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	})
}

// FromConfig picks the target for cfg. A non-empty out directory wins over
// the configuration.
func FromConfig(cfg config.PublishConfig, out string) (Target, error) {
	switch {
	case out != "":
		return NewDir(out), nil
	case cfg.Dir != "":
		return NewDir(cfg.Dir), nil
	case cfg.Bucket != "":
		return NewS3(NewS3Client(cfg.Region), cfg.Bucket, cfg.Prefix), nil
	}
	return nil, errors.New("E501")
}

// PageKey maps a page path to the key it is stored under. The query is
// dropped.
func PageKey(p string) string {
	p, _, _ = strings.Cut(p, "?")
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return "index.html"
	}
	return p + "/index.html"
}
