package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/testutil"
)

func TestChunked_WalksEveryChunk(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	c := newQuery(a).SetLimit(2).All(context.Background())
	assert.Equal(t, 2, c.ChunkSize())

	var got []string
	var more []bool
	for c.Next() {
		got = append(got, nameOf(c.Value()))
		if len(got)%2 == 1 {
			more = append(more, c.HasMore())
		}
	}
	require.NoError(t, c.Err())

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, got)
	assert.Equal(t, []bool{true, true, false}, more)
	require.Equal(t, 3, a.Count(backend.OpGet))
	assert.Equal(t, []int{0, 2, 4}, []int{a.Calls[0].Offset, a.Calls[1].Offset, a.Calls[2].Offset})
}

func TestChunked_DefaultChunkSize(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(3)...)

	assert.Equal(t, DefaultChunkSize, newQuery(a).All(context.Background()).ChunkSize())
	assert.Equal(t, 2, newQuery(a, WithChunkSize(2)).All(context.Background()).ChunkSize())
}

func TestChunked_StartsAtOffset(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	c := newQuery(a).SetLimit(2).SetOffset(1).All(context.Background())

	var got []string
	for v, err := range c.Seq() {
		require.NoError(t, err)
		got = append(got, nameOf(v))
	}
	assert.Equal(t, []string{"B", "C", "D", "E"}, got)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestChunked_AtOutsideChunkIsPointQuery(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	c := newQuery(a).SetLimit(2).All(context.Background())

	v, err := c.At(1)
	require.NoError(t, err)
	assert.Equal(t, "B", nameOf(v))
	assert.Zero(t, a.Count(backend.OpGetOne), "in-chunk index is answered from memory")

	v, err = c.At(3)
	require.NoError(t, err)
	assert.Equal(t, "D", nameOf(v))
	assert.Equal(t, 1, a.Count(backend.OpGetOne))
	assert.Equal(t, 1, a.Count(backend.OpGet))

	_, err = c.At(9)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestChunked_CountUsesBackendWhenMore(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	c := newQuery(a).SetLimit(2).All(context.Background())

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, a.Count(backend.OpCount))

	small := testutil.NewSliceAdapter("name", testutil.Letters(2)...)
	n, err = newQuery(small).SetLimit(5).All(context.Background()).Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, small.Count(backend.OpCount))
}

func TestChunked_ResetReusesFirstChunk(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(3)...)
	c := newQuery(a).SetLimit(5).All(context.Background())

	require.True(t, c.Next())
	require.True(t, c.Next())
	c.Reset()
	require.True(t, c.Next())
	assert.Equal(t, "A", nameOf(c.Value()))
	assert.Equal(t, 1, a.Count(backend.OpGet))
}

func TestChunked_ValuesAndFilter(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)

	_, err := newQuery(a).SetLimit(2).All(context.Background()).Values()
	assert.True(t, IsNoSelectedFields(err))

	c, err := newQuery(a).Select("name").SetLimit(2).All(context.Background()).Values()
	require.NoError(t, err)
	c.SetFilter(func(v any) bool { return v != "C" })

	var got []any
	for c.Next() {
		got = append(got, c.Value())
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []any{"A", "B", "D", "E"}, got)
}

func TestChunked_DoesNotModifyQuery(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	q := newQuery(a).SetLimit(2)
	c := q.All(context.Background())
	for c.Next() {
	}

	limit, offset, _ := q.Bounds()
	assert.Equal(t, 2, limit)
	assert.Zero(t, offset)
}

func TestChunked_EmptyCriteria(t *testing.T) {
	m := &testutil.MockAdapter{}
	c := newQuery(m).In("name", []string{}).All(context.Background())

	assert.False(t, c.Next())
	require.NoError(t, c.Err())
	n, err := c.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunked_Field(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)
	c := newQuery(a).SetLimit(2).All(context.Background())

	var got []any
	for v, err := range c.Field("name") {
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []any{"A", "B", "C", "D", "E"}, got)
	assert.Equal(t, 3, a.Count(backend.OpGet))
}

func TestQuery_Iterate(t *testing.T) {
	ctx := context.Background()
	a := testutil.NewSliceAdapter("name", testutil.Letters(5)...)

	it, err := newQuery(a).SetLimit(2).Iterate(ctx)
	require.NoError(t, err)
	r, ok := it.(*Results)
	require.True(t, ok, "a limit means one bounded fetch")
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.HasMore)

	it, err = newQuery(a).Iterate(ctx)
	require.NoError(t, err)
	_, ok = it.(*Chunked)
	require.True(t, ok, "no limit walks every row")
	var got []string
	for it.Next() {
		got = append(got, nameOf(it.Value()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, got)

	_, err = newQuery(a).Sort("name", 0).Iterate(ctx)
	assert.True(t, IsInvalidDirection(err))
	_, err = newQuery(a).Sort("name", 0).SetLimit(2).Iterate(ctx)
	assert.True(t, IsInvalidDirection(err))
}
