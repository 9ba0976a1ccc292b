// Package retry runs platform calls under a rate-limit aware supervisor.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg-exchange/internal/logger"
)

var ErrAttemptsExceeded = errors.New("retry: attempt ceiling reached")

// Kind classifies the outcome of one attempt.
type Kind int

const (
	OK Kind = iota
	RateLimited
	Terminal
	Failed
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case RateLimited:
		return "rate_limited"
	case Terminal:
		return "terminal"
	default:
		return "failed"
	}
}

// Outcome is what a single attempt produced.
type Outcome[T any] struct {
	Value T
	Kind  Kind
	Wait  time.Duration
	Err   error
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Kind: OK}
}

// Wait asks the supervisor to retry after w.
func Wait[T any](w time.Duration, err error) Outcome[T] {
	return Outcome[T]{Kind: RateLimited, Wait: w, Err: err}
}

// Stop reports a failure that retrying cannot fix, such as a deleted chat.
func Stop[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Terminal, Err: err}
}

func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Failed, Err: err}
}

// Result is the supervised result of an operation.
type Result[T any] struct {
	Value    T
	Kind     Kind
	Err      error
	Attempts int
	Waited   time.Duration
}

func (r Result[T]) OK() bool { return r.Kind == OK }

// Supervisor retries rate-limited attempts, sleeping the requested wait plus
// one Unit, up to MaxAttempts attempts in total.
type Supervisor struct {
	MaxAttempts int
	Unit        time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

func New(maxAttempts int, unit time.Duration) *Supervisor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if unit <= 0 {
		unit = time.Second
	}
	return &Supervisor{MaxAttempts: maxAttempts, Unit: unit, Sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op until it stops asking to be retried.
func Do[T any](ctx context.Context, s *Supervisor, name string, op func(ctx context.Context) Outcome[T]) Result[T] {
	var res Result[T]
	for res.Attempts < s.MaxAttempts {
		res.Attempts++
		out := op(ctx)
		res.Value, res.Kind, res.Err = out.Value, out.Kind, out.Err

		switch out.Kind {
		case OK:
			attemptCount.WithLabelValues(name, "ok").Inc()
			return res
		case Terminal:
			attemptCount.WithLabelValues(name, "terminal").Inc()
			logger.Debugf("%s: terminal failure: %v", name, out.Err)
			return res
		case RateLimited:
			attemptCount.WithLabelValues(name, "rate_limited").Inc()
			if res.Attempts >= s.MaxAttempts {
				break
			}
			d := out.Wait + s.Unit
			logger.Debugf("%s: rate limited, sleeping %v (attempt %d)", name, d, res.Attempts)
			if err := s.Sleep(ctx, d); err != nil {
				res.Kind, res.Err = Failed, err
				return res
			}
			res.Waited += d
			waitSeconds.Add(d.Seconds())
		default:
			attemptCount.WithLabelValues(name, "failed").Inc()
			logger.Warningf("%s: %v", name, out.Err)
			res.Kind = Failed
			return res
		}
	}

	res.Kind = Failed
	res.Err = fmt.Errorf("%w: %s after %d attempts: %v", ErrAttemptsExceeded, name, res.Attempts, res.Err)
	logger.Warningf("%v", res.Err)
	return res
}
