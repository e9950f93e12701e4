package stats

import (
	"context"
	"time"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// DefaultTimeout bounds each stage of the pipeline.
const DefaultTimeout = 8 * time.Second

// Stage produces a value or fails.
type Stage[T any] func(ctx context.Context) (T, error)

// Result carries the value and which stage produced it. DirectErr holds the
// swallowed direct-stage error when the proxy answered instead.
type Result[T any] struct {
	Value     T
	Source    Source
	DirectErr error
}

// Run attempts direct, and only after it has failed for any reason attempts
// proxy. The two stages never overlap. Each stage gets its own timeout.
// When proxy is nil the direct error is returned as is. When proxy fails
// its error is returned and the direct error is dropped.
func Run[T any](ctx context.Context, timeout time.Duration, direct, proxy Stage[T]) (Result[T], error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var res Result[T]
	if direct != nil {
		v, err := runStage(ctx, timeout, direct)
		if err == nil {
			res.Value, res.Source = v, SourceDirect
			return res, nil
		}
		res.DirectErr = err
	}

	if proxy == nil {
		if res.DirectErr == nil {
			return res, errors.New(errors.ErrConfig, "No stats source configured", "")
		}
		return res, res.DirectErr
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	v, err := runStage(ctx, timeout, proxy)
	if err != nil {
		return res, err
	}
	res.Value, res.Source = v, SourceProxy
	return res, nil
}

func runStage[T any](ctx context.Context, timeout time.Duration, stage Stage[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return stage(ctx)
}
