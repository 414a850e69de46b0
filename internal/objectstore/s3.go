// Copyright 2025 James Ross
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/klauspost/compress/zstd"

	"github.com/coppersystems/pipelined/internal/config"
)

// S3Client is the aws-sdk-go-backed implementation of Client, grounded on
// the same session/credentials setup used to talk to MinIO/LocalStack-style
// custom endpoints.
type S3Client struct {
	api *s3.S3
}

// NewS3Client builds a client from engine configuration. A non-empty
// Endpoint points the client at an S3-compatible store, and path-style
// addressing is then used when ForcePathStyle is set; without an Endpoint,
// ForcePathStyle has no effect.
func NewS3Client(cfg config.S3) (*S3Client, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(cfg.ForcePathStyle)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: build session: %w", err)
	}
	return &S3Client{api: s3.New(sess)}, nil
}

func (c *S3Client) NewReader(ctx context.Context, bucket, key string) (BlobReader, error) {
	r := &s3Reader{api: c.api, bucket: bucket, key: key}
	if strings.HasSuffix(key, ".zst") {
		return &zstdReader{inner: r}, nil
	}
	return r, nil
}

// s3Reader issues one ranged GetObject per fragment read, matching the
// upstream S3Reader's read-is-a-blocking-ranged-GET behavior.
type s3Reader struct {
	api    *s3.S3
	bucket string
	key    string

	resolved bool
	size     int64
	mime     string
	cursor   int64
}

func (r *s3Reader) resolve(ctx context.Context) error {
	if r.resolved {
		return nil
	}
	out, err := r.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: head %s/%s: %w", r.bucket, r.key, err)
	}
	if out.ContentLength != nil {
		r.size = *out.ContentLength
	}
	if out.ContentType != nil {
		r.mime = *out.ContentType
	}
	r.resolved = true
	return nil
}

func (r *s3Reader) Mime() string { return r.mime }
func (r *s3Reader) Size() int64  { return r.size }

func (r *s3Reader) NextFragment(ctx context.Context, maxBytes int) ([]byte, bool, error) {
	if err := r.resolve(ctx); err != nil {
		return nil, false, err
	}
	if r.cursor >= r.size {
		return nil, true, nil
	}
	end := r.cursor + int64(maxBytes) - 1
	if end > r.size-1 {
		end = r.size - 1
	}
	rng := fmt.Sprintf("bytes=%d-%d", r.cursor, end)
	out, err := r.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return nil, false, fmt.Errorf("objectstore: range read %s/%s %s: %w", r.bucket, r.key, rng, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("objectstore: read body: %w", err)
	}
	r.cursor += int64(len(data))
	return data, r.cursor >= r.size, nil
}

// zstdReader transparently decompresses a .zst-suffixed object, draining
// the underlying ranged reader as needed to refill its own output buffer.
// Fragment boundaries from the caller's perspective no longer line up with
// the underlying object's byte ranges once decompression is in play, which
// is fine: NextFragment's contract is "up to maxBytes of decoded output,"
// not "one underlying range read."
type zstdReader struct {
	inner   *s3Reader
	dec     *zstd.Decoder
	pr      *io.PipeReader
	started bool
}

func (z *zstdReader) Mime() string { return "application/octet-stream" }
func (z *zstdReader) Size() int64  { return -1 }

func (z *zstdReader) start(ctx context.Context) error {
	if z.started {
		return nil
	}
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		for {
			data, last, err := z.inner.NextFragment(ctx, 1<<20)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if len(data) > 0 {
				if _, werr := pw.Write(data); werr != nil {
					return
				}
			}
			if last {
				return
			}
		}
	}()
	dec, err := zstd.NewReader(pr)
	if err != nil {
		return fmt.Errorf("objectstore: open zstd stream: %w", err)
	}
	z.dec = dec
	z.pr = pr
	z.started = true
	return nil
}

func (z *zstdReader) NextFragment(ctx context.Context, maxBytes int) ([]byte, bool, error) {
	if err := z.start(ctx); err != nil {
		return nil, false, err
	}
	buf := make([]byte, maxBytes)
	n, err := z.dec.Read(buf)
	if err != nil && err != io.EOF {
		return nil, false, fmt.Errorf("objectstore: decompress: %w", err)
	}
	return buf[:n], err == io.EOF, nil
}
