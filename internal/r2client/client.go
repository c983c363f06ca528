// Package r2client talks to Cloudflare R2 through the S3 API. It provides
// conditional writes for a distributed lock and zstd compressed JSON objects
// used for timetable snapshots.
package r2client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("r2client: object not found")

// maxObjectBytes caps downloads. Snapshots compress to a few hundred KiB.
const maxObjectBytes = 64 << 20

// ObjectStore is the subset of object storage the lock and snapshot
// manager need. ETags are returned without surrounding quotes.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Head(ctx context.Context, key string) (string, error)
	// PutIfAbsent creates key only when it does not exist yet.
	PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) (bool, string, error)
	// PutIfMatch replaces key only when its current ETag equals etag.
	PutIfMatch(ctx context.Context, key string, body []byte, etag, contentType string) (bool, string, error)
	Delete(ctx context.Context, key string) error
}

// Config holds R2 client configuration.
type Config struct {
	Endpoint    string // e.g. https://<account-id>.r2.cloudflarestorage.com
	AccessKeyID string
	SecretKey   string
	BucketName  string
}

// Client is the S3 backed ObjectStore.
type Client struct {
	s3     *s3.Client
	bucket string
}

var _ ObjectStore = (*Client)(nil)

// New creates a new R2 client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretKey == "" || cfg.BucketName == "" {
		return nil, errors.New("r2client: endpoint, credentials and bucket are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2client: load aws config: %w", err)
	}

	return &Client{
		s3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}),
		bucket: cfg.BucketName,
	}, nil
}

// Put writes an object unconditionally.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, etag, err := c.put(ctx, key, body, contentType, nil)
	if err != nil {
		return "", fmt.Errorf("r2client: put %q: %w", key, err)
	}
	return etag, nil
}

// PutIfAbsent uses If-None-Match: * and reports false when key already exists.
func (c *Client) PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) (bool, string, error) {
	ok, etag, err := c.put(ctx, key, body, contentType, func(in *s3.PutObjectInput) {
		in.IfNoneMatch = aws.String("*")
	})
	if err != nil {
		return false, "", fmt.Errorf("r2client: put if absent %q: %w", key, err)
	}
	return ok, etag, nil
}

// PutIfMatch uses If-Match and reports false when the ETag changed.
func (c *Client) PutIfMatch(ctx context.Context, key string, body []byte, etag, contentType string) (bool, string, error) {
	ok, newETag, err := c.put(ctx, key, body, contentType, func(in *s3.PutObjectInput) {
		in.IfMatch = aws.String(`"` + etag + `"`)
	})
	if err != nil {
		return false, "", fmt.Errorf("r2client: put if match %q: %w", key, err)
	}
	return ok, newETag, nil
}

// put issues a PutObject. A failed precondition is reported as (false, "", nil).
func (c *Client) put(ctx context.Context, key string, body []byte, contentType string, condition func(*s3.PutObjectInput)) (bool, string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if condition != nil {
		condition(input)
	}

	result, err := c.s3.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, trimETag(result.ETag), nil
}

// Get downloads an object. Returns ErrNotFound when it does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("r2client: get %q: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(result.Body, maxObjectBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("r2client: read %q: %w", key, err)
	}
	if len(data) > maxObjectBytes {
		return nil, "", fmt.Errorf("r2client: object %q exceeds %d bytes", key, maxObjectBytes)
	}
	return data, trimETag(result.ETag), nil
}

// Head returns the ETag of an object. Returns ErrNotFound when it does not exist.
func (c *Client) Head(ctx context.Context, key string) (string, error) {
	result, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("r2client: head %q: %w", key, err)
	}
	return trimETag(result.ETag), nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("r2client: delete %q: %w", key, err)
	}
	return nil
}

func trimETag(etag *string) string {
	if etag == nil {
		return ""
	}
	return strings.Trim(*etag, `"`)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusPreconditionFailed
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
