package yearlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameYear(t *testing.T) {
	l := NewLocal()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), 2025)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside)
}

func TestLocalYearsAreIndependent(t *testing.T) {
	l := NewLocal()

	unlock2025, err := l.Lock(context.Background(), 2025)
	require.NoError(t, err)
	defer unlock2025()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2026, err := l.Lock(ctx, 2026)
	require.NoError(t, err)
	unlock2026()
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), 2025)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 2025)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// double unlock is harmless
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), 2025)
	require.NoError(t, err)
	again()
}

func TestNop(t *testing.T) {
	unlock, err := Nop{}.Lock(context.Background(), 2025)
	require.NoError(t, err)
	unlock()
}
