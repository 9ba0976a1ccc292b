package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"

	"tg-exchange/internal/retry"
)

func apiError(code int, desc string, retryAfter int) error {
	e := &telegoapi.Error{ErrorCode: code, Description: desc}
	if retryAfter > 0 {
		e.Parameters = &telegoapi.ResponseParameters{RetryAfter: retryAfter}
	}
	return fmt.Errorf("telego: sendMessage: %w", e)
}

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	var rl *RateLimitError
	err := Classify(apiError(429, "Too Many Requests: retry after 7", 7))
	assert.True(errors.As(err, &rl))
	assert.Equal(7*time.Second, rl.RetryAfter)

	assert.ErrorIs(Classify(apiError(400, "Bad Request: chat not found", 0)), ErrInvalidDestination)
	assert.ErrorIs(Classify(apiError(400, "Bad Request: PEER_ID_INVALID", 0)), ErrInvalidDestination)
	assert.ErrorIs(Classify(apiError(403, "Forbidden: bot was kicked from the supergroup chat", 0)), ErrForbidden)

	other := apiError(400, "Bad Request: message is too long", 0)
	assert.Equal(other, Classify(other))

	plain := errors.New("connection reset")
	assert.Equal(plain, Classify(plain))
	assert.NoError(Classify(nil))
}

func TestAttempt(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(retry.OK, Attempt(1, nil).Kind)

	out := Attempt(0, &RateLimitError{RetryAfter: 3 * time.Second})
	assert.Equal(retry.RateLimited, out.Kind)
	assert.Equal(3*time.Second, out.Wait)

	assert.Equal(retry.Terminal, Attempt(0, fmt.Errorf("%w: gone", ErrInvalidDestination)).Kind)
	assert.Equal(retry.Terminal, Attempt(0, ErrForbidden).Kind)
	assert.Equal(retry.Failed, Attempt(0, errors.New("boom")).Kind)
}

func TestCallRetriesRateLimits(t *testing.T) {
	assert := assert.New(t)

	sup := retry.New(5, time.Millisecond)
	sup.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	f := NewFakeClient(1)
	f.Fail("SendMessage", 10, &RateLimitError{RetryAfter: time.Second}, 2)

	res := Call(context.Background(), sup, "send", func(ctx context.Context) (int, error) {
		return f.SendMessage(ctx, 10, "hi", SendOptions{})
	})
	assert.True(res.OK())
	assert.Equal(3, res.Attempts)
	assert.Len(f.MessagesTo(10), 1)
}

func TestMessageIndex(t *testing.T) {
	assert := assert.New(t)

	x := NewMessageIndex(16, 3)
	for i := 1; i <= 5; i++ {
		x.Record(-100, 7, i)
	}
	x.Record(-100, 8, 99)

	assert.Equal([]int{3, 4, 5}, x.Peek(-100, 7))
	assert.Equal([]int{3, 4, 5}, x.Peek(-100, 7))

	x.Forget(-100, 7, []int{3, 4})
	x.Record(-100, 7, 6)
	assert.Equal([]int{5, 6}, x.Peek(-100, 7))

	x.Forget(-100, 7, []int{5, 6})
	assert.Nil(x.Peek(-100, 7))
	assert.Equal([]int{99}, x.Peek(-100, 8))
}
