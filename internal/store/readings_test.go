package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

func appendAll(t *testing.T, s *Store, sensor string, readings ...ir.Reading) {
	t.Helper()
	for _, r := range readings {
		require.NoError(t, s.Append(context.Background(), sensor, r))
	}
}

func timestamps(rs []ir.Reading) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.Timestamp
	}
	return out
}

func TestWindow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	appendAll(t, s, "home@t:v",
		ir.Reading{Value: ir.Number(1), Timestamp: 0},
		ir.Reading{Value: ir.Number(2), Timestamp: 10},
		ir.Reading{Value: ir.Number(3), Timestamp: 20},
		ir.Reading{Value: ir.Number(4), Timestamp: 30},
	)

	got, err := s.Window(ctx, "home@t:v", 30, 15)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 20}, timestamps(got))

	got, err = s.Window(ctx, "home@t:v", 30, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, timestamps(got))

	got, err = s.Window(ctx, "home@t:v", 25, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, timestamps(got), "future readings are invisible")

	got, err = s.Window(ctx, "home@other:v", 30, 15)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestWindowRoundTripsValueKinds(t *testing.T) {
	s := createTestStore(t)
	values := []ir.Value{
		ir.Number(-2.5),
		ir.Text("door \"A\" open"),
		ir.Bool(true),
		ir.Location{Lat: 52.37, Lon: 4.9},
		ir.Blob{0x0a, 0xff},
	}
	for i, v := range values {
		appendAll(t, s, "lab@mixed:v", ir.Reading{Value: v, Timestamp: int64(i)})
	}

	got, err := s.Window(context.Background(), "lab@mixed:v", 10, 10)
	require.NoError(t, err)
	require.Len(t, got, len(values))
	for i, r := range got {
		assert.True(t, ir.Equal(values[len(values)-1-i], r.Value), "reading %d: %v", i, r.Value)
	}
}

func TestWindowEqualTimestampsNewestInsertFirst(t *testing.T) {
	s := createTestStore(t)
	appendAll(t, s, "home@t:v",
		ir.Reading{Value: ir.Number(1), Timestamp: 5},
		ir.Reading{Value: ir.Number(2), Timestamp: 5},
	)
	got, err := s.Window(context.Background(), "home@t:v", 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.Number(2), got[0].Value)
}

func TestAppendNotifiesBoundIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	var notified [][]string
	s.OnDataChanged(func(ids ...string) { notified = append(notified, ids) })

	require.NoError(t, s.Register(ctx, "rule.L", expr.Binding{Location: "home", Entity: "t", ValuePath: "v"}))
	appendAll(t, s, "home@t:v", ir.Reading{Value: ir.Number(1), Timestamp: 1})
	appendAll(t, s, "home@other:v", ir.Reading{Value: ir.Number(1), Timestamp: 1})

	assert.Equal(t, [][]string{{"rule.L"}}, notified)

	s.Unregister(ctx, "rule.L")
	appendAll(t, s, "home@t:v", ir.Reading{Value: ir.Number(2), Timestamp: 2})
	assert.Len(t, notified, 1)
}

func TestAppendRejectsNilValue(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.Append(context.Background(), "home@t:v", ir.Reading{Timestamp: 1}))
}

func TestAverageRate(t *testing.T) {
	s := createTestStore(t, WithNow(func() int64 { return 120_000 }))
	for i := int64(0); i < 30; i++ {
		appendAll(t, s, "home@t:v", ir.Reading{Value: ir.Number(1), Timestamp: 61_000 + i*1000})
	}
	appendAll(t, s, "home@t:v", ir.Reading{Value: ir.Number(1), Timestamp: 1000})
	assert.InDelta(t, 0.5, s.AverageRate(), 1e-9)
}

func TestPrune(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	appendAll(t, s, "home@t:v",
		ir.Reading{Value: ir.Number(1), Timestamp: 0},
		ir.Reading{Value: ir.Number(2), Timestamp: 100},
	)
	n, err := s.Prune(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Window(ctx, "home@t:v", 100, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(got))

	sensors, err := s.Sensors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home@t:v"}, sensors)
}
