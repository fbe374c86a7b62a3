// Package archive exports finished games to S3 compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"stepchess/internal/logging"
	"stepchess/internal/model"
)

// Settings locate the bucket. Endpoint is only needed for non-AWS providers.
type Settings struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes one JSON document per finished game.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	log    *zap.Logger
}

// New creates an archiver over an existing client.
func New(client ObjectPutter, bucket, prefix string, log *zap.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, log: logging.OrNop(log)}
}

// NewS3 builds an S3 client from settings. Static credentials are used when
// given; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, s Settings, log *zap.Logger) (*Archiver, error) {
	region := s.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if s.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, s.Bucket, s.Prefix, log), nil
}

// Key is the object key of a game.
func (a *Archiver) Key(g *model.Game) string {
	ended := g.UpdatedAt
	if g.EndedAt != nil {
		ended = *g.EndedAt
	}
	return path.Join(a.prefix, "games", ended.UTC().Format("2006/01/02"), g.ID+".json")
}

// Archive uploads g.
func (a *Archiver) Archive(ctx context.Context, g *model.Game) error {
	body, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(g)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload game %s: %w", g.ID, err)
	}
	return nil
}

// OnGameEnded archives after once it is terminal. Uploads get their own
// deadline so a slow bucket cannot pile up goroutines.
func (a *Archiver) OnGameEnded(ctx context.Context, _, after *model.Game) {
	if after == nil || !after.Status.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.Archive(ctx, after); err != nil {
		a.log.Warn("archive failed", zap.String("game", after.ID), zap.Error(err))
		return
	}
	a.log.Debug("game archived", zap.String("game", after.ID), zap.String("key", a.Key(after)))
}
