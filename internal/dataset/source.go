package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"

	"knnvote/internal/config"
	pkgerrors "knnvote/pkg/errors"
)

const objectStoreScheme = "s3://"

// Opener resolves a source identifier to a byte stream. Local paths and
// s3://bucket/key objects are supported; .gz, .zst and .lz4 suffixes are
// decompressed on the fly.
type Opener struct {
	// ObjectStore serves s3:// sources. Nil disables them.
	ObjectStore *minio.Client
}

// NewObjectStore connects to an S3-compatible endpoint. An empty endpoint
// yields a nil client.
func NewObjectStore(conf config.ObjectStoreConfig) (*minio.Client, error) {
	if conf.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store %s: %w", conf.Endpoint, err)
	}
	return client, nil
}

// Open returns a reader over the decompressed contents of source.
func (o *Opener) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	var (
		raw  io.ReadCloser
		name string
		err  error
	)
	if strings.HasPrefix(source, objectStoreScheme) {
		raw, name, err = o.openObject(ctx, source)
	} else {
		raw, err = os.Open(source)
		name = source
	}
	if err != nil {
		return nil, err
	}

	rc, err := decompress(raw, name)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	return rc, nil
}

func (o *Opener) openObject(ctx context.Context, source string) (io.ReadCloser, string, error) {
	bucket, key, err := ParseObjectURI(source)
	if err != nil {
		return nil, "", err
	}
	if o.ObjectStore == nil {
		return nil, "", fmt.Errorf("%w: %s (no object store configured)", pkgerrors.ErrUnsupportedSource, source)
	}
	obj, err := o.ObjectStore.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", source, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before parsing starts
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("stat object %s: %w", source, err)
	}
	return obj, key, nil
}

// ParseObjectURI splits s3://bucket/key.
func ParseObjectURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, objectStoreScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", pkgerrors.ErrUnsupportedSource, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: object uri must be s3://bucket/key, got %s",
			pkgerrors.ErrUnsupportedSource, uri)
	}
	return bucket, key, nil
}

type stackedReadCloser struct {
	io.Reader
	closers []func() error
}

func (s *stackedReadCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decompress(raw io.ReadCloser, name string) (io.ReadCloser, error) {
	switch path.Ext(name) {
	case ".gz":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: zr, closers: []func() error{zr.Close, raw.Close}}, nil
	case ".zst":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			raw.Close,
		}}, nil
	case ".lz4":
		return &stackedReadCloser{Reader: lz4.NewReader(raw), closers: []func() error{raw.Close}}, nil
	default:
		return raw, nil
	}
}
