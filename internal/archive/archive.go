// Package archive uploads finished games as PGN to S3-compatible object storage.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/config"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
)

const contentType = "application/x-chess-pgn"

// Uploader writes PGN objects under a date partitioned prefix.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// New builds an uploader from the archive settings. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}, nil
}

// Key builds the object key, e.g. games/2026/10/16/42-alice-vs-bob-1a2b3c4d.pgn.
func (u *Uploader) Key(g *domain.Game, white, black string) string {
	at := u.now().UTC()
	if g.EndedAt != nil {
		at = g.EndedAt.UTC()
	}
	name := slug.Make(white + " vs " + black)
	if name == "" {
		name = "game"
	}
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	key := fmt.Sprintf("%04d/%02d/%02d/%d-%s-%s.pgn", at.Year(), int(at.Month()), at.Day(), g.ID, name, suffix)
	if u.prefix == "" {
		return key
	}
	return u.prefix + "/" + key
}

// Upload stores pgn for the finished game and returns the object key.
func (u *Uploader) Upload(ctx context.Context, g *domain.Game, white, black, pgn string) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil game")
	}
	key := u.Key(g, white, black)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(pgn),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"game-id": fmt.Sprintf("%d", g.ID),
			"result":  g.Result,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload pgn: %w", err)
	}
	obslog.L().Info("game_archived", zap.Int64("game_id", g.ID), zap.String("key", key))
	return key, nil
}
