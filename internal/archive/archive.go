// Package archive copies terminal task envelopes to object storage
// (SPEC_FULL.md §4.I). The copy is made at the terminal transition; the
// broker's task:<id> mirror is written without a TTL, so it does not
// expire on its own. Grounded on the teacher's internal/worker/image_handler.go S3
// upload path, repurposed from uploading a resized image to uploading a
// task's serialized JSON envelope.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"telemetryhub/internal/task"
)

// Config selects the bucket and endpoint an Archiver uploads to. Endpoint
// is optional, set for S3-compatible stores (minio) during tests; PathStyle
// mirrors the teacher's cfg.ImageS3PathStyle knob for such endpoints.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// putter is the subset of *s3.Client an Archiver needs, declared as an
// interface so tests can stub it without a real AWS endpoint, mirroring
// the teacher's imageUploader seam in internal/worker/image_handler.go.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads terminal task envelopes, keyed
// "<queue>/<status>/<task_id>.json".
type Archiver struct {
	client putter
	bucket string
	log    *logrus.Entry
}

// New constructs an Archiver from cfg, resolving credentials the same way
// the AWS SDK's default chain does (env, shared config, IMDS).
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: cfg.PathStyle,
					SigningRegion:     cfg.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})
	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		log:    logrus.WithField("component", "archive").WithField("bucket", cfg.Bucket),
	}, nil
}

// Store uploads t's envelope under queue's prefix, returning the s3:// URI
// written. Callers invoke this after a terminal status transition; a
// failure here should be logged and not block the transition itself.
func (a *Archiver) Store(ctx context.Context, queue string, t task.Task) (string, error) {
	body, err := t.ToJSON()
	if err != nil {
		return "", fmt.Errorf("archive: serialize task %s: %w", t.ID(), err)
	}
	key := fmt.Sprintf("%s/%s/%s.json", queue, t.Status().String(), t.ID())

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object %s: %w", key, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	if a.log != nil {
		a.log.WithField("task_id", t.ID()).WithField("uri", uri).Debug("archived terminal task")
	}
	return uri, nil
}
