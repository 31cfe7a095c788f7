package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/ir"
)

func drain(q *deadlineQueue[string], now int64) []string {
	var out []string
	for {
		e, _, _ := q.next(now)
		if e == nil {
			return out
		}
		out = append(out, e.item)
		q.removeEntry(e)
	}
}

func TestDeadlineQueue_OrdersByDueThenFIFO(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	require.True(t, q.add("c", "c", 30))
	require.True(t, q.add("a", "a", 10))
	require.True(t, q.add("b1", "b1", 20))
	require.True(t, q.add("b2", "b2", 20))

	assert.Equal(t, []string{"a", "b1", "b2", "c"}, drain(q, 100))
}

func TestDeadlineQueue_NextReportsWakeTime(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	e, wakeAt, closed := q.next(0)
	assert.Nil(t, e)
	assert.Equal(t, ir.Forever, wakeAt)
	assert.False(t, closed)

	q.add("a", "a", 50)
	e, wakeAt, _ = q.next(10)
	assert.Nil(t, e)
	assert.Equal(t, int64(50), wakeAt)
}

func TestDeadlineQueue_RejectsDuplicateKey(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	assert.True(t, q.add("a", "first", 10))
	assert.False(t, q.add("a", "second", 5))
	assert.Equal(t, []string{"first"}, drain(q, 100))
}

func TestDeadlineQueue_ParkedUntilPromoted(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("a", "a", 0)
	e, _, _ := q.next(0)
	require.NotNil(t, e)
	q.complete(e, 0, 0, true)

	got, wakeAt, _ := q.next(1_000_000)
	assert.Nil(t, got, "parked entries are not timer driven")
	assert.Equal(t, ir.Forever, wakeAt)
	_, parked := q.depth()
	assert.Equal(t, 1, parked)

	assert.True(t, q.promote("a", 500))
	got, _, _ = q.next(500)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.key)
}

func TestDeadlineQueue_PromoteMovesDeadlineForward(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("late", "late", 1000)
	q.add("soon", "soon", 100)

	q.promote("late", 50)
	assert.Equal(t, []string{"late", "soon"}, drain(q, 100))
}

func TestDeadlineQueue_PromoteWhileInFlightRequeuesNow(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("a", "a", 0)
	e, _, _ := q.next(0)
	require.NotNil(t, e)

	assert.True(t, q.promote("a", 5))
	q.complete(e, 7, 0, true)

	got, _, _ := q.next(7)
	require.NotNil(t, got, "dirty entry is queued at now instead of parked")
}

func TestDeadlineQueue_RemoveWhileInFlightDropsOnComplete(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("a", "a", 0)
	e, _, _ := q.next(0)
	require.NotNil(t, e)

	item, ok := q.remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", item)
	assert.False(t, q.active(e))

	q.complete(e, 1, 10, false)
	got, _, _ := q.next(100)
	assert.Nil(t, got)
	assert.False(t, q.has("a"))
	assert.False(t, q.removeEntry(e))
}

func TestDeadlineQueue_CompleteNeverRequeuesInThePast(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("a", "a", 0)
	e, _, _ := q.next(10)
	q.complete(e, 10, 3, false)

	got, wakeAt, _ := q.next(10)
	assert.Nil(t, got)
	assert.Equal(t, int64(11), wakeAt)
}

func TestDeadlineQueue_CloseWakesAndReturnsItems(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("b", "b", 0)
	q.add("a", "a", 5)

	assert.Equal(t, []string{"a", "b"}, q.close())
	for range q.wait() {
	}

	_, _, closed := q.next(0)
	assert.True(t, closed)
	assert.False(t, q.add("c", "c", 0))
	assert.Nil(t, q.close())
}

func TestDeadlineQueue_SnapshotSorted(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	q.add("b", "b", 20)
	q.add("a", "a", 10)
	snap := q.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Key)
	assert.Equal(t, int64(10), snap[0].Due)
	assert.Equal(t, "b", snap[1].Key)
}

func TestDeadlineQueue_PeekDoesNotTake(t *testing.T) {
	q := newDeadlineQueue[string]("test")
	assert.Equal(t, ir.Forever, q.peek())

	require.True(t, q.add("a", "a", 40))
	require.True(t, q.add("b", "b", 15))
	assert.Equal(t, int64(15), q.peek())
	assert.Equal(t, int64(15), q.peek())
	assert.Equal(t, []string{"b", "a"}, drain(q, 100))
}
