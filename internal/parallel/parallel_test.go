package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEachVisitsEveryIndex(t *testing.T) {
	out := make([]int, 100)
	err := ForEach(len(out), 4, func(i int) error {
		out[i] = i * i
		return nil
	})
	assert.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestForEachReturnsLowestFailure(t *testing.T) {
	for _, workers := range []int{1, 4} {
		var calls int32
		err := ForEach(10, workers, func(i int) error {
			atomic.AddInt32(&calls, 1)
			switch i {
			case 3:
				return errors.New("three")
			case 7:
				return errors.New("seven")
			}
			return nil
		})
		assert.EqualError(t, err, "three", "workers=%d", workers)
		assert.Equal(t, int32(10), atomic.LoadInt32(&calls), "workers=%d", workers)
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Workers(8, 0))
	assert.Equal(t, 3, Workers(8, 3))
	assert.Equal(t, 2, Workers(2, 50))
	assert.GreaterOrEqual(t, Workers(-1, 50), 1)
}
