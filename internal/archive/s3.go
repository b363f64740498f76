// package archive uploads event log snapshots to object storage, giving
// the append-only log an off-box backup independent of the mirror peer.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/dossier-hq/dossier/internal/eventstore"
)

// Archiver uploads one serialized snapshot and returns its object key.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, data []byte) (string, error)
}

// S3Archiver writes export snapshots to S3 paths like:
//
//	s3://<bucket>/<prefix>/cases/YYYY/MM/DD/<exportID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
	nowFunc  func() time.Time
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
// The prefix may be empty.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// ArchiveSnapshot uploads the snapshot bytes under a date-partitioned key
// and returns the key.
func (a *S3Archiver) ArchiveSnapshot(ctx context.Context, data []byte) (string, error) {
	ts := a.nowFunc()
	year, month, day := ts.Date()
	objectKey := path.Join(a.prefix, "cases",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", uuid.NewString()),
	)

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return objectKey, nil
}

// Runner exports the full store on a fixed period and ships the snapshot
// to the archiver. Failures are logged; the next cycle is the retry.
type Runner struct {
	store    eventstore.Store
	archiver Archiver
	period   time.Duration
	stop     chan struct{}
}

// NewRunner builds a periodic snapshot runner. A period <= 0 defaults to
// one hour.
func NewRunner(store eventstore.Store, archiver Archiver, period time.Duration) *Runner {
	if period <= 0 {
		period = time.Hour
	}
	return &Runner{
		store:    store,
		archiver: archiver,
		period:   period,
		stop:     make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.archiveOnce(ctx)
		}
	}
}

// Stop ends the run loop.
func (r *Runner) Stop() { close(r.stop) }

func (r *Runner) archiveOnce(ctx context.Context) {
	data, err := eventstore.Export(ctx, r.store)
	if err != nil {
		log.Printf("[archive] export: %v", err)
		return
	}
	key, err := r.archiver.ArchiveSnapshot(ctx, data)
	if err != nil {
		log.Printf("[archive] upload: %v", err)
		return
	}
	log.Printf("[archive] snapshot archived: %s", key)
}
