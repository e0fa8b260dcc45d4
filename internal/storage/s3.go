package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// S3Driver stores artifacts in an S3-compatible bucket.
type S3Driver struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	dir      string
}

// S3Options carries the connection parameters for one bucket. Endpoint may
// point at any S3-compatible store (path-style addressing is used when set).
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Dir       string
}

func NewS3Driver(ctx context.Context, opts S3Options) (*S3Driver, error) {
	cfgFuncs := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfgFuncs = append(cfgFuncs, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgFuncs...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Driver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		dir:      opts.Dir,
	}, nil
}

func (d *S3Driver) Name() string { return "s3" }

func (d *S3Driver) Key(name string) string {
	return objectKey(d.dir, name)
}

func (d *S3Driver) Write(ctx context.Context, key string, data []byte) (string, error) {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.Key(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("s3 write %s: %w", key, err)
	}
	return d.Key(key), nil
}

func (d *S3Driver) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.Key(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s: %w", key, err)
	}
	return data, nil
}

func (d *S3Driver) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	head, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.Key(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("s3 stat %s: %w", key, err)
	}
	return ObjectInfo{
		Size:         aws.ToInt64(head.ContentLength),
		ContentType:  aws.ToString(head.ContentType),
		CacheControl: aws.ToString(head.CacheControl),
	}, nil
}

func (d *S3Driver) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.Key(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 open %s: %w", key, err)
	}
	return out.Body, nil
}

// OpenWrite returns a writer that streams into a multipart upload. The
// upload is not visible until Close returns without error.
func (d *S3Driver) OpenWrite(ctx context.Context, key string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(d.Key(key)),
			Body:   pr,
		})
		if err != nil {
			pr.CloseWithError(err)
			return fmt.Errorf("s3 stream upload %s: %w", key, err)
		}
		return nil
	})

	return &s3WriteStream{pw: pw, g: g}, nil
}

type s3WriteStream struct {
	pw *io.PipeWriter
	g  *errgroup.Group
}

func (w *s3WriteStream) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3WriteStream) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return w.g.Wait()
}

// UploadStream buffers the entire payload in memory before committing it to
// the bucket. This mirrors the upload pipeline's behavior and bounds archive
// size by available memory; large uploads should go through OpenWrite.
func (d *S3Driver) UploadStream(ctx context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("s3 buffer upload %s: %w", key, err)
	}
	return d.Write(ctx, key, data)
}

func (d *S3Driver) Delete(ctx context.Context, keys ...string) error {
	objects := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(d.Key(key))})
	}
	if len(objects) == 0 {
		return nil
	}

	// DeleteObjects succeeds for keys that are already gone.
	_, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(d.bucket),
		Delete: &s3types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

func (d *S3Driver) Copy(ctx context.Context, src, dst string) error {
	_, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(d.bucket),
		Key:        aws.String(d.Key(dst)),
		CopySource: aws.String(d.bucket + "/" + d.Key(src)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("s3 copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}
