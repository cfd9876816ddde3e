package booster

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/snmp"
)

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue()

	for _, oid := range []string{".1", ".2", ".3"} {
		q.Enqueue(NewPollTask(snmp.KindGet, "h", testAuth, testTarget, []string{oid}, noopHandler()))
	}

	first := q.Drain(2)
	require.Len(t, first, 2)
	assert.Equal(t, []string{".1"}, first[0].OIDs)
	assert.Equal(t, []string{".2"}, first[1].OIDs)
	assert.Equal(t, 1, q.Len())

	rest := q.Drain(2)
	require.Len(t, rest, 1)
	assert.Equal(t, []string{".3"}, rest[0].OIDs)

	assert.Nil(t, q.Drain(2))
	assert.Nil(t, q.Drain(0))
}

func TestTaskQueueConcurrentEnqueue(t *testing.T) {
	q := NewTaskQueue()

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				q.Enqueue(&PollTask{})
			}
		}()
	}

	wg.Wait()

	total := 0
	for q.Len() > 0 {
		total += len(q.Drain(7))
	}

	assert.Equal(t, 800, total)
}
