package utils

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/princinho/toursbackend/apperror"
	"google.golang.org/api/option"
)

// ImageStore persists uploaded images and hands back their public URLs.
type ImageStore interface {
	Upload(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]string, error)
	Delete(ctx context.Context, publicURLs []string) error
}

// DisabledImageStore rejects uploads when no storage driver is configured.
type DisabledImageStore struct{}

func (DisabledImageStore) Upload(context.Context, string, []*multipart.FileHeader) ([]string, error) {
	return nil, apperror.Upstream("File uploads are not configured on this server", nil)
}

func (DisabledImageStore) Delete(context.Context, []string) error { return nil }

func objectName(prefix string, fh *multipart.FileHeader) (string, string) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".bin"
	}
	name := fmt.Sprintf("%s/%d-%s%s", strings.Trim(prefix, "/"), time.Now().UTC().Unix(), uuid.NewString(), ext)

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(ext)
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return name, ct
}

type putFunc func(name, contentType string, body io.Reader) (publicURL string, err error)

// uploadEach stores files one by one under prefix and stops at the first
// failure. Objects stored before it are left in place.
func uploadEach(prefix string, files []*multipart.FileHeader, put putFunc) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		name, ct := objectName(prefix, fh)
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		public, err := put(name, ct, f)
		_ = f.Close()
		if err != nil {
			return nil, apperror.Upstream("Could not store uploaded image", fmt.Errorf("upload %s: %w", fh.Filename, err))
		}
		urls = append(urls, public)
	}
	return urls, nil
}

// R2Store talks to Cloudflare R2 through its S3-compatible API.
type R2Store struct {
	s3           *s3.Client
	bucket       string
	publicDomain string
}

func NewR2Store(ctx context.Context, bucket, accessKey, secretKey, endpoint, publicDomain string) (*R2Store, error) {
	if bucket == "" || accessKey == "" || secretKey == "" || endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Store{s3: client, bucket: bucket, publicDomain: strings.TrimRight(publicDomain, "/")}, nil
}

func (r *R2Store) Upload(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]string, error) {
	return uploadEach(prefix, files, func(name, ct string, body io.Reader) (string, error) {
		_, err := r.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(r.bucket),
			Key:          aws.String(name),
			Body:         body,
			ContentType:  aws.String(ct),
			CacheControl: aws.String("public, max-age=31536000"),
		})
		return r.publicURL(name), err
	})
}

func (r *R2Store) Delete(ctx context.Context, publicURLs []string) error {
	var firstErr error
	for _, raw := range publicURLs {
		obj, err := r.objectNameFromURL(raw)
		if err != nil {
			continue
		}
		_, err = r.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(obj),
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return firstErr
}

func (r *R2Store) publicURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", r.publicDomain, r.bucket, name)
}

func (r *R2Store) objectNameFromURL(raw string) (string, error) {
	prefix := r.publicDomain + "/" + r.bucket + "/"
	if r.publicDomain != "" && strings.HasPrefix(raw, prefix) {
		return strings.TrimPrefix(raw, prefix), nil
	}
	return "", fmt.Errorf("not a recognised R2 public url")
}

// GCSStore keeps images in a public Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (g *GCSStore) Close() error { return g.client.Close() }

func (g *GCSStore) Upload(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]string, error) {
	return uploadEach(prefix, files, func(name, ct string, body io.Reader) (string, error) {
		w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
		w.ContentType = ct
		if _, err := io.Copy(w, body); err != nil {
			_ = w.Close()
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, name), nil
	})
}

func (g *GCSStore) Delete(ctx context.Context, publicURLs []string) error {
	var firstErr error
	for _, raw := range publicURLs {
		obj, err := ObjectNameFromGCSPublicURL(g.bucket, raw)
		if err != nil {
			continue
		}
		if err := g.client.Bucket(g.bucket).Object(obj).Delete(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return firstErr
}

func ObjectNameFromGCSPublicURL(bucket string, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	host := strings.ToLower(u.Host)
	path := strings.TrimPrefix(u.Path, "/")

	// storage.googleapis.com/<bucket>/<object>
	if host == "storage.googleapis.com" {
		prefix := bucket + "/"
		if !strings.HasPrefix(path, prefix) {
			return "", fmt.Errorf("url bucket mismatch")
		}
		return strings.TrimPrefix(path, prefix), nil
	}

	// <bucket>.storage.googleapis.com/<object>
	if host == strings.ToLower(bucket)+".storage.googleapis.com" {
		if path == "" {
			return "", fmt.Errorf("missing object path")
		}
		return path, nil
	}

	return "", fmt.Errorf("not a gcs public url")
}
