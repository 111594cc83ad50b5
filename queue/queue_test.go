package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfferPollFIFO(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Offer(i))
	}

	require.ErrorIs(t, q.Offer(99), ErrFull)

	for i := 0; i < 4; i++ {
		v, ok := q.Poll()
		require.True(t, ok)
		require.Equal(t, i, v)
	}

	_, ok := q.Poll()
	require.False(t, ok)
}

func TestOfferAfterCloseFails(t *testing.T) {
	q := New[string](2)
	require.NoError(t, q.Offer("a"))
	q.Close()
	require.ErrorIs(t, q.Offer("b"), ErrClosed)

	v, ok := q.Poll()
	require.True(t, ok)
	require.Equal(t, "a", v)
}

func TestDrainStopsEarlyOnFalse(t *testing.T) {
	q := New[int](8)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Offer(i))
	}

	var seen []int
	n := q.Drain(10, func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	require.Equal(t, 3, n)
	require.Equal(t, []int{0, 1, 2}, seen)
	require.Equal(t, 2, q.Len())
}

func TestConcurrentProducersRespectCapacity(t *testing.T) {
	q := New[int](100)
	var wg sync.WaitGroup
	var accepted, rejected atomic.Int32

	for p := 0; p < 20; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if err := q.Offer(i); err == nil {
					accepted.Add(1)
				} else {
					rejected.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(100), accepted.Load())
	require.Equal(t, int32(300), rejected.Load())
	require.Equal(t, 100, q.Len())
}
