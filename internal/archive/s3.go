// Package archive keeps a copy of generated certificates in S3.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// DefaultPrefix is the key prefix for certificate objects
const DefaultPrefix = "certificates"

// S3Config holds S3 client configuration
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

type headAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive uploads certificate files that the bucket does not have yet
type S3Archive struct {
	client   headAPI
	uploader uploadAPI
	cfg      S3Config
	log      zerolog.Logger
}

// NewS3Archive creates an archive using static credentials when given and the
// default AWS credential chain otherwise.
func NewS3Archive(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	log = log.With().Str("component", "Archive").Str("bucket", cfg.Bucket).Logger()

	awsCfg, err := loadAWSConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg)
	return newS3Archive(client, manager.NewUploader(client), cfg, log), nil
}

func loadAWSConfig(ctx context.Context, cfg S3Config, log zerolog.Logger) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		log.Debug().Msg("Using default AWS credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

func newS3Archive(client headAPI, uploader uploadAPI, cfg S3Config, log zerolog.Logger) *S3Archive {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &S3Archive{client: client, uploader: uploader, cfg: cfg, log: log}
}

// Key returns the object key for a local certificate file:
// {prefix}/{certificates dir name}/{file name}
func (a *S3Archive) Key(file string) string {
	return path.Join(a.cfg.Prefix, filepath.Base(filepath.Dir(file)), filepath.Base(file))
}

// Archive uploads file unless an object with its key already exists.
// Certificate names are content addressed so an existing key means the
// same certificate.
func (a *S3Archive) Archive(ctx context.Context, file string) error {
	key := a.Key(file)

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		a.log.Debug().Str("key", key).Msg("Already archived")
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check %s: %w", key, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open certificate: %w", err)
	}
	defer f.Close()

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	a.log.Info().Str("key", key).Msg("Certificate archived")
	return nil
}
