package objectstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/config"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// S3Gateway implements Gateway against S3-compatible storage (MinIO in
// development, AWS in production). Two clients are held: one on the internal
// endpoint for byte transfer, one on the public endpoint whose presigned
// URLs resolve from outside the cluster.
type S3Gateway struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	putExpiry time.Duration
}

// NewS3 builds the gateway from configuration.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Gateway, error) {
	base, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "objectstore.new", "load aws config")
	}

	client := s3.NewFromConfig(base, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})
	// Presigned URLs must carry the host the client can actually reach.
	publicClient := s3.NewFromConfig(base, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.PublicEndpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Gateway{
		client:    client,
		presigner: s3.NewPresignClient(publicClient),
		bucket:    cfg.Bucket,
		putExpiry: time.Duration(cfg.PresignPutExpiry) * time.Second,
	}, nil
}

// PresignPut signs an upload URL for key. The Content-Type header is
// deliberately left out of the signature so clients that omit or alter it
// do not get signature mismatches; it is suggested back instead.
func (g *S3Gateway) PresignPut(ctx context.Context, key, contentType string) (PresignedPut, error) {
	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.putExpiry))
	if err != nil {
		return PresignedPut{}, errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.presign_put", "sign put url")
	}

	out := PresignedPut{URL: req.URL}
	if contentType != "" {
		out.Headers = map[string]string{"Content-Type": contentType}
	}
	return out, nil
}

func (g *S3Gateway) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.presign_get", "sign get url")
	}
	return req.URL, nil
}

func (g *S3Gateway) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := g.client.PutObject(ctx, in); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.upload", "put object").
			WithField("key", key)
	}
	return nil
}

func (g *S3Gateway) Download(ctx context.Context, key, localPath string) error {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return errors.InvalidMedia("input object missing: " + key)
		}
		return errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.download", "get object").
			WithField("key", key)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore.download", "create local file")
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.download", "copy object body")
	}
	return nil
}

func (g *S3Gateway) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.WrapWithCode(err, errors.CodeUnavailable, "objectstore.exists", "head object")
	}
	return true, nil
}

// UploadDir uploads every file under localDir with keys rooted at keyPrefix.
// Playlists (.m3u8) are uploaded after everything else: their presence is
// the resume marker for the HLS step, so they must not appear in storage
// before the segments they reference.
func (g *S3Gateway) UploadDir(ctx context.Context, localDir, keyPrefix string) error {
	var files, playlists []string
	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".m3u8") {
			playlists = append(playlists, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "objectstore.upload_dir", "walk local dir")
	}

	for _, path := range append(files, playlists...) {
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return errors.Wrap(err, "objectstore.upload_dir", "relativize path")
		}
		key := keyPrefix + "/" + filepath.ToSlash(rel)

		if err := g.uploadPath(ctx, path, key); err != nil {
			return err
		}
	}
	return nil
}

func (g *S3Gateway) uploadPath(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "objectstore.upload_dir", "open local file")
	}
	defer f.Close()
	return g.Upload(ctx, key, f, contentTypeFor(path))
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts", ".m2ts":
		return "video/MP2T"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}
