package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"

	config "flightweather/pkg/batch/config"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// ErrCircuitOpen はサーキットブレーカーが開いているためアップロードを行わなかったことを表します。
var ErrCircuitOpen = errors.New("オブジェクトストレージへのサーキットが開いています")

// objectStore は Publisher が使う minio.Client のメソッドです。
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher は成果物を S3 互換のオブジェクトストレージにアップロードします。
// 連続して失敗した場合はサーキットブレーカーが開き、Timeout の間はアップロードを試みません。
type Publisher struct {
	store        objectStore
	bucket       string
	prefix       string
	cb           *gobreaker.CircuitBreaker
	maxRetries   int
	initialDelay time.Duration
	bucketReady  bool
}

// NewPublisher は cfg の接続先に対する Publisher を作成します。
func NewPublisher(cfg config.ObjectStoreConfig) (*Publisher, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, exception.NewBatchErrorf("publisher", "オブジェクトストレージ '%s' のクライアントを作成できません", cfg.Endpoint, err)
	}
	return newPublisher(cli, cfg), nil
}

func newPublisher(store objectStore, cfg config.ObjectStoreConfig) *Publisher {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "object_store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("サーキットブレーカー '%s' の状態が %s から %s に変わりました。", name, from, to)
		},
	})
	return &Publisher{
		store:        store,
		bucket:       cfg.Bucket,
		prefix:       cfg.Prefix,
		cb:           cb,
		maxRetries:   2,
		initialDelay: 500 * time.Millisecond,
	}
}

// ObjectKey はファイル名 name に対応するオブジェクトキーを返します。
func (p *Publisher) ObjectKey(name string) string {
	return path.Join(p.prefix, filepath.Base(name))
}

// Publish は localPath のファイルを name のオブジェクトとしてアップロードし、オブジェクトキーを返します。
// localPath は改名前の一時ファイルでも構いません。Content-Type は name の拡張子から決まります。
// 失敗した場合は指数的に間隔を空けて再試行します。サーキットが開いている場合は ErrCircuitOpen を返します。
func (p *Publisher) Publish(ctx context.Context, localPath, name string, metadata map[string]string) (string, error) {
	key := p.ObjectKey(name)
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		_, err := p.cb.Execute(func() (interface{}, error) {
			if err := p.ensureBucket(ctx); err != nil {
				return nil, err
			}
			return p.store.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
				ContentType:  contentType(name),
				UserMetadata: metadata,
			})
		})
		if err == nil {
			logger.Infof("成果物 '%s' を s3://%s/%s にアップロードしました。", name, p.bucket, key)
			return key, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", exception.NewBatchError("publisher", fmt.Sprintf("'%s' をアップロードできません", key),
				errors.Join(ErrCircuitOpen, err), true, false)
		}

		lastErr = err
		if attempt >= p.maxRetries {
			break
		}
		delay := p.initialDelay << attempt
		logger.Warnf("'%s' のアップロードに失敗しました。%s 後に再試行します: %v", key, delay, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", exception.NewBatchError("publisher", fmt.Sprintf("'%s' のアップロードに失敗しました", key), lastErr, true, false)
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	if p.bucketReady {
		return nil
	}
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
		logger.Infof("バケット '%s' を作成しました。", p.bucket)
	}
	p.bucketReady = true
	return nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".arrow":
		return "application/vnd.apache.arrow.file"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
