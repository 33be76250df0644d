package partition

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

const tracerName = "flightweather/pkg/batch/step/partition"

// BatchFunc は 1 つのバッチを処理する関数です。
// 返すスライスはバッチの要素と 1 対 1 に同じ順序で対応しなければなりません。件数が異なる場合、そのバッチは失敗します。
type BatchFunc[I, O any] func(ctx context.Context, r Range, batch []I) ([]O, error)

// Runner は入力をバッチに分割し、固定数のワーカーで処理します。
type Runner[I, O any] struct {
	name      string
	batchSize int
	workers   int
	listeners []ProgressListener
}

// NewRunner は新しい Runner を作成します。batchSize と workers は 1 以上でなければなりません。
func NewRunner[I, O any](name string, batchSize, workers int, listeners ...ProgressListener) (*Runner[I, O], error) {
	if batchSize <= 0 || workers <= 0 {
		return nil, exception.NewBatchErrorf("partition",
			"バッチサイズとワーカー数は 1 以上でなければなりません (batch_size: %d, workers: %d)", batchSize, workers, exception.ErrInvalidConfig)
	}
	return &Runner[I, O]{
		name:      name,
		batchSize: batchSize,
		workers:   workers,
		listeners: listeners,
	}, nil
}

// Run は items を分割して並列に処理し、結果をバッチの分割順に連結して返します。
//
// いずれかのバッチがエラーを返すか panic した場合、Run はそのバッチ番号を含む BatchError を返します。
// その時点で未投入のバッチは投入されず、実行中のバッチは完了を待ちます。
// ctx がキャンセルされた場合も同様に新しいバッチの投入を止めます。
func (r *Runner[I, O]) Run(ctx context.Context, items []I, fn BatchFunc[I, O]) ([]O, error) {
	ranges, err := Partition(len(items), r.batchSize)
	if err != nil {
		return nil, err
	}
	total := len(ranges)
	logger.Infof("%s: %d 件を %d バッチに分割し、%d ワーカーで処理します。", r.name, len(items), total, r.workers)

	slots := make([][]O, total)
	completions := make(chan int, total)
	coordinatorDone := make(chan struct{})

	go func() {
		defer close(coordinatorDone)
		completed := 0
		for range completions {
			completed++
			for _, l := range r.listeners {
				l.OnBatchCompleted(r.name, completed, total)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

dispatch:
	for _, rng := range ranges {
		select {
		case <-gctx.Done():
			logger.Warnf("%s: バッチ %d 以降の投入を中止します: %v", r.name, rng.Index, context.Cause(gctx))
			break dispatch
		default:
		}

		g.Go(func() (err error) {
			if err := gctx.Err(); err != nil {
				return err
			}

			bctx, span := otel.Tracer(tracerName).Start(gctx, r.name+" batch")
			span.SetAttributes(
				attribute.Int("batch.index", rng.Index),
				attribute.Int("batch.size", rng.Len()),
			)
			defer func() {
				if p := recover(); p != nil {
					err = r.batchError(rng, fmt.Errorf("panic: %v", p))
				}
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				}
				span.End()
			}()

			out, err := fn(bctx, rng, items[rng.Start:rng.End])
			if err != nil {
				return r.batchError(rng, err)
			}
			if len(out) != rng.Len() {
				return r.batchError(rng, fmt.Errorf("%d 件の入力に対して %d 件の結果が返されました", rng.Len(), len(out)))
			}
			slots[rng.Index] = out
			completions <- rng.Index
			return nil
		})
	}

	waitErr := g.Wait()
	close(completions)
	<-coordinatorDone

	if waitErr != nil {
		logger.Errorf("%s: 処理に失敗しました: %v", r.name, waitErr)
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := 0
	for _, s := range slots {
		size += len(s)
	}
	results := make([]O, 0, size)
	for _, s := range slots {
		results = append(results, s...)
	}
	return results, nil
}

func (r *Runner[I, O]) batchError(rng Range, cause error) error {
	return exception.NewBatchError(
		r.name,
		fmt.Sprintf("バッチ %d (行 %d-%d) の処理に失敗しました", rng.Index, rng.Start, rng.End),
		errors.Join(exception.ErrBatchFailed, cause),
		false,
		false,
	)
}
