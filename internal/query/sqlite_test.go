package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viggyfresh/prom/internal/backend/sqlite"
	"github.com/viggyfresh/prom/internal/logging"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

type pet struct {
	ID      int64  `prom:"_id"`
	Name    string `prom:"name"`
	Species string `prom:"species"`
	Age     int64  `prom:"age"`
}

func openDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "pets.db"),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func petSchema() *schema.Schema {
	return schema.MustNew("pets", []schema.Field{
		{Name: "name", Type: schema.TypeString, Required: true},
		{Name: "species", Type: schema.TypeString},
		{Name: "age", Type: schema.TypeInt},
	})
}

func seedPets(t *testing.T, db *sqlite.DB, s *schema.Schema) {
	t.Helper()
	ctx := context.Background()
	pets := []struct {
		name, species string
		age           int
	}{
		{"Rex", "dog", 4},
		{"Tom", "cat", 7},
		{"Nemo", "fish", 1},
		{"Fido", "dog", 9},
		{"Kiki", "bird", 2},
	}
	for _, p := range pets {
		_, err := query.New(s, db, query.WithLogger(logging.Discard())).
			SetField("name", p.name).
			SetField("species", p.species).
			SetField("age", p.age).
			Insert(ctx)
		require.NoError(t, err)
	}
}

func TestSQLite_InsertRepairsMissingTable(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := petSchema()

	id, err := query.New(s, db, query.WithLogger(logging.Discard())).
		SetField("name", "Rex").
		Insert(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	has, err := db.HasTable(ctx, "pets")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSQLite_ReadPaths(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := petSchema()
	seedPets(t, db, s)

	q := func() *query.Query {
		return query.New(s, db, query.WithLogger(logging.Discard()), query.WithFactory(query.StructFactory[pet]()))
	}

	n, err := q().Is("species", "dog").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	v, err := q().Between("age", 2, 4).Asc("age").GetOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kiki", v.(*pet).Name)

	last, err := q().Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kiki", last.(*pet).Name)

	r, err := q().Select("name").Asc("species", []string{"fish", "dog", "cat", "bird"}).Asc("name").Values(ctx)
	require.NoError(t, err)
	names, err := r.Collect()
	require.NoError(t, err)
	assert.Equal(t, []any{"Nemo", "Fido", "Rex", "Tom", "Kiki"}, names)

	r, err = q().NotIn("species", []string{"dog", "cat"}).Desc("age").Get(ctx)
	require.NoError(t, err)
	all, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Kiki", all[0].(*pet).Name)

	c := q().Asc("pk").SetLimit(2).All(ctx)
	var walked []string
	for v, err := range c.Seq() {
		require.NoError(t, err)
		walked = append(walked, v.(*pet).Name)
	}
	assert.Equal(t, []string{"Rex", "Tom", "Nemo", "Fido", "Kiki"}, walked)
}

func TestSQLite_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := petSchema()
	seedPets(t, db, s)

	newQ := func() *query.Query { return query.New(s, db, query.WithLogger(logging.Discard())) }

	n, err := newQ().Is("species", "dog").SetField("age", 10).Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ages, err := newQ().Select("age").Is("species", "dog").Values(ctx)
	require.NoError(t, err)
	vals, err := ages.Collect()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(10)}, vals)

	n, err = newQ().Gt("age", 5).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := newQ().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)
}
