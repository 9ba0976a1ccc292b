package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego/telegoapi"

	"tg-exchange/internal/retry"
)

var (
	// ErrInvalidDestination means the chat, user or message no longer exists
	// or the bot lacks the rights to act on it.
	ErrInvalidDestination = errors.New("platform: destination invalid")
	ErrForbidden          = errors.New("platform: forbidden")
)

// RateLimitError asks the caller to wait before trying again.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("platform: rate limited, retry after %v: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// descriptions of Bad Request errors that retrying cannot fix
var terminalDescriptions = []string{
	"chat not found",
	"peer_id_invalid",
	"channel_invalid",
	"channel_private",
	"user not found",
	"user_not_participant",
	"participant_id_invalid",
	"not enough rights",
	"need administrator rights",
	"have no rights",
	"message to delete not found",
	"message to forward not found",
	"message_id_invalid",
	"message can't be deleted",
	"bot was kicked",
	"group chat was deactivated",
	"can't remove chat owner",
	"user is an administrator",
}

// Classify turns a Bot API error into one of the package's error kinds.
// Unknown errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *telegoapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode {
	case http.StatusTooManyRequests:
		wait := time.Second
		if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
			wait = time.Duration(apiErr.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: wait, Err: err}
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Description)
	case http.StatusBadRequest:
		desc := strings.ToLower(apiErr.Description)
		for _, d := range terminalDescriptions {
			if strings.Contains(desc, d) {
				return fmt.Errorf("%w: %s", ErrInvalidDestination, apiErr.Description)
			}
		}
	}
	return err
}

// IsTerminal reports whether err will not go away by retrying.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidDestination) || errors.Is(err, ErrForbidden)
}

// Attempt maps a client result onto a retry outcome.
func Attempt[T any](v T, err error) retry.Outcome[T] {
	if err == nil {
		return retry.Ok(v)
	}
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return retry.Wait[T](rl.RetryAfter, err)
	case IsTerminal(err):
		return retry.Stop[T](err)
	default:
		return retry.Fail[T](err)
	}
}

// Call runs a client call under the supervisor.
func Call[T any](ctx context.Context, sup *retry.Supervisor, name string, fn func(ctx context.Context) (T, error)) retry.Result[T] {
	return retry.Do(ctx, sup, name, func(ctx context.Context) retry.Outcome[T] {
		return Attempt(fn(ctx))
	})
}

// Exec is Call for operations without a value.
func Exec(ctx context.Context, sup *retry.Supervisor, name string, fn func(ctx context.Context) error) retry.Result[struct{}] {
	return retry.Do(ctx, sup, name, func(ctx context.Context) retry.Outcome[struct{}] {
		return Attempt(struct{}{}, fn(ctx))
	})
}
