package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/testutil"
)

func nameOf(v any) string {
	s, _ := v.(backend.Row).Get("name")
	return s.(string)
}

func TestResults_MaterializesLazily(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(3)...)
	calls := 0
	factory := func(row backend.Row) (any, error) {
		calls++
		v, _ := row.Get("name")
		return v, nil
	}

	r, err := newQuery(a, WithFactory(factory)).Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls, "nothing is built until visited")

	require.True(t, r.Next())
	assert.Equal(t, "A", r.Value())
	assert.Equal(t, 1, calls)

	v, err := r.At(2)
	require.NoError(t, err)
	assert.Equal(t, "C", v)
	assert.Equal(t, 2, calls)
}

func TestResults_FactoryError(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(2)...)
	boom := errors.New("bad row")

	r, err := newQuery(a, WithFactory(func(backend.Row) (any, error) { return nil, boom })).Get(context.Background())
	require.NoError(t, err)

	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), boom)

	_, err = r.Collect()
	assert.ErrorIs(t, err, boom)
}

func TestResults_Filter(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(4)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	r.SetFilter(func(v any) bool { return nameOf(v) != "B" })
	var got []string
	for r.Next() {
		got = append(got, nameOf(r.Value()))
	}
	assert.Equal(t, []string{"A", "C", "D"}, got)
	assert.Equal(t, 4, r.Len(), "Len ignores the filter")

	v, err := r.At(1)
	require.NoError(t, err)
	assert.Equal(t, "B", nameOf(v), "At ignores the filter")
}

func TestResults_Seq(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(3)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	var got []string
	for v, err := range r.Seq() {
		require.NoError(t, err)
		got = append(got, nameOf(v))
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestResults_PopReverseSort(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(4)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	v, err := r.Pop(-1)
	require.NoError(t, err)
	assert.Equal(t, "D", nameOf(v))

	v, err = r.Pop(0)
	require.NoError(t, err)
	assert.Equal(t, "A", nameOf(v))
	assert.Equal(t, 2, r.Len())

	r.Reverse()
	vals, err := r.Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, []string{nameOf(vals[0]), nameOf(vals[1])})

	r.Sort(func(x, y backend.Row) bool { return nameOf(x) < nameOf(y) })
	require.True(t, r.Next())
	assert.Equal(t, "B", nameOf(r.Value()))

	_, err = r.Pop(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestResults_PopKeepsCursor(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(3)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	require.True(t, r.Next())
	require.True(t, r.Next())
	_, err = r.Pop(0)
	require.NoError(t, err)

	require.True(t, r.Next())
	assert.Equal(t, "C", nameOf(r.Value()))
	assert.False(t, r.Next())
}

func TestResults_RowsAreCopied(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(2)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	rows := r.Rows()
	rows[0] = backend.Row{}
	v, err := r.At(0)
	require.NoError(t, err)
	assert.Equal(t, "A", nameOf(v))
}

type person struct {
	ID   int64  `prom:"_id"`
	Name string `prom:"name"`
	Age  int
}

func TestStructFactory(t *testing.T) {
	row := backend.NewRow([]string{"_id", "name", "age"}, []any{int64(7), "Ada", "36"})

	v, err := StructFactory[person]()(row)
	require.NoError(t, err)
	assert.Equal(t, &person{ID: 7, Name: "Ada", Age: 36}, v)

	bad := backend.NewRow([]string{"age"}, []any{"old"})
	_, err = StructFactory[person]()(bad)
	assert.Error(t, err)
}

func TestResults_Field(t *testing.T) {
	a := testutil.NewSliceAdapter("name", testutil.Letters(4)...)
	r, err := newQuery(a).Get(context.Background())
	require.NoError(t, err)

	var ids []any
	for v, err := range r.Field("_id") {
		require.NoError(t, err)
		ids = append(ids, v)
	}
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, ids)

	r.SetFilter(func(v any) bool { return nameOf(v) != "C" })
	var names []any
	for v, err := range r.Field("name") {
		require.NoError(t, err)
		names = append(names, v)
	}
	assert.Equal(t, []any{"A", "B", "D"}, names)

	for v, err := range r.Field("missing") {
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}
