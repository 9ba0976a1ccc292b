package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestPoolRunsTasks(t *testing.T) {
	assert := assert.New(t)
	p := NewPool(3, 16)
	p.Start(context.Background())

	done := atomic.NewInt32(0)
	for i := 0; i < 10; i++ {
		assert.True(p.Submit("count", func(ctx context.Context) { done.Inc() }))
	}
	p.Stop()

	assert.Equal(int32(10), done.Load())
	assert.Equal(int64(0), p.Pending())
	assert.False(p.Submit("late", func(ctx context.Context) {}))
}

func TestPoolSurvivesPanics(t *testing.T) {
	assert := assert.New(t)
	p := NewPool(1, 4)
	p.Start(context.Background())

	ran := atomic.NewBool(false)
	p.Submit("panic", func(ctx context.Context) { panic("boom") })
	p.Submit("after", func(ctx context.Context) { ran.Store(true) })
	p.Stop()

	assert.True(ran.Load())
}

func TestPoolDropsWhenFull(t *testing.T) {
	assert := assert.New(t)
	p := NewPool(1, 1)
	p.Start(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	assert.True(p.Submit("block", func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-release
	}))
	<-started

	assert.True(p.Submit("queued", func(ctx context.Context) {}))
	assert.False(p.Submit("dropped", func(ctx context.Context) {}))

	close(release)
	p.Stop()
}

func TestAfter(t *testing.T) {
	p := NewPool(1, 4)
	p.Start(context.Background())
	defer p.Stop()

	ran := make(chan struct{})
	p.After(10*time.Millisecond, "later", func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not run")
	}
}
