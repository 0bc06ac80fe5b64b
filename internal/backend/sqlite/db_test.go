package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/logging"
	"github.com/viggyfresh/prom/internal/schema"
)

var drivers = []string{DriverCGO, DriverPure}

// createTestDB opens a fresh database file under t.TempDir.
func createTestDB(t *testing.T, driver string) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Driver: driver,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func peopleSchema() *schema.Schema {
	return schema.MustNew("people", []schema.Field{
		{Name: "name", Type: schema.TypeString, Required: true},
		{Name: "age", Type: schema.TypeInt},
		{Name: "active", Type: schema.TypeBool},
		{Name: "born", Type: schema.TypeDatetime},
	})
}

func insertPeople(t *testing.T, db *DB, s *schema.Schema, ages ...int) {
	t.Helper()
	ctx := context.Background()
	for i, age := range ages {
		_, err := db.Insert(ctx, s, []criteria.FieldValue{
			{Name: "name", Value: string(rune('A' + i))},
			{Name: "age", Value: age},
			{Name: "active", Value: i%2 == 0},
			{Name: "born", Value: time.Date(2000+i, time.Month(i+1), 1, 12, 0, 0, 0, time.UTC)},
		})
		require.NoError(t, err)
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	assert.ErrorContains(t, err, "unsupported sqlite driver")

	_, err = Open(Config{})
	assert.ErrorContains(t, err, "empty database path")
}

func TestInsert_MissingTableIsDrift(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := createTestDB(t, driver)
			s := peopleSchema()
			ctx := context.Background()

			_, err := db.Insert(ctx, s, []criteria.FieldValue{{Name: "name", Value: "A"}})
			require.Error(t, err)
			assert.True(t, backend.IsMissingTable(err), "got %v", err)

			repaired, err := db.Repair(ctx, s, err)
			require.NoError(t, err)
			assert.True(t, repaired)

			id, err := db.Insert(ctx, s, []criteria.FieldValue{{Name: "name", Value: "A"}})
			require.NoError(t, err)
			assert.Equal(t, int64(1), id)

			ok, err := db.HasTable(ctx, "people")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRepair_AddsMissingColumns(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := createTestDB(t, driver)
			ctx := context.Background()

			old := schema.MustNew("people", []schema.Field{{Name: "name", Type: schema.TypeString}})
			require.NoError(t, db.CreateTable(ctx, old))

			s := peopleSchema()
			_, err := db.Insert(ctx, s, []criteria.FieldValue{{Name: "name", Value: "A"}, {Name: "age", Value: 3}})
			require.Error(t, err)
			assert.True(t, backend.IsMissingColumn(err), "got %v", err)

			repaired, err := db.Repair(ctx, s, err)
			require.NoError(t, err)
			assert.True(t, repaired)

			cols, err := db.Columns(ctx, "people")
			require.NoError(t, err)
			assert.Equal(t, []string{"_id", "name", "age", "active", "born"}, cols)

			repaired, err = db.Repair(ctx, s, err)
			require.NoError(t, err)
			assert.False(t, repaired, "nothing left to add")
		})
	}
}

func TestRepair_IgnoresOtherErrors(t *testing.T) {
	db := createTestDB(t, DriverCGO)
	s := peopleSchema()

	repaired, err := db.Repair(context.Background(), s, assert.AnError)
	require.NoError(t, err)
	assert.False(t, repaired)

	other := &backend.SchemaDriftError{Kind: backend.DriftMissingTable, Table: "elsewhere"}
	repaired, err = db.Repair(context.Background(), s, other)
	require.NoError(t, err)
	assert.False(t, repaired)
}

func TestQuery_ReadsAndAdaptsTypes(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := createTestDB(t, driver)
			s := peopleSchema()
			ctx := context.Background()
			require.NoError(t, db.CreateTable(ctx, s))
			insertPeople(t, db, s, 10, 20, 30)

			set := criteria.NewSet()
			set.AddWhere(criteria.Criterion{Verb: criteria.VerbGTE, Field: "age", Value: 20})
			res, err := db.Query(ctx, backend.OpGet, s, set)
			require.NoError(t, err)
			require.Len(t, res.Rows, 2)

			name, _ := res.Rows[0].Get("name")
			active, _ := res.Rows[0].Get("active")
			born, _ := res.Rows[0].Get("born")
			assert.Equal(t, "B", name)
			assert.Equal(t, false, active)
			assert.IsType(t, time.Time{}, born)

			res, err = db.Query(ctx, backend.OpCount, s, set)
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.Count)

			res, err = db.Query(ctx, backend.OpGetOne, s, set)
			require.NoError(t, err)
			assert.Len(t, res.Rows, 1)
		})
	}
}

func TestQuery_ExplicitSortOrder(t *testing.T) {
	db := createTestDB(t, DriverCGO)
	s := peopleSchema()
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, s))
	insertPeople(t, db, s, 10, 20, 30)

	ages := func(dir criteria.Direction) []any {
		set := criteria.NewSet()
		set.AddField("age", criteria.Unset)
		set.AddSort(criteria.SortCriterion{Direction: dir, Field: "age", Order: []any{30, 10, 20}})
		res, err := db.Query(ctx, backend.OpGet, s, set)
		require.NoError(t, err)
		out := make([]any, len(res.Rows))
		for i, r := range res.Rows {
			out[i], _ = r.Get("age")
		}
		return out
	}

	assert.Equal(t, []any{int64(30), int64(10), int64(20)}, ages(criteria.Ascending))
	assert.Equal(t, []any{int64(20), int64(10), int64(30)}, ages(criteria.Descending))
}

func TestQuery_DatePartOptions(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := createTestDB(t, driver)
			s := peopleSchema()
			ctx := context.Background()
			require.NoError(t, db.CreateTable(ctx, s))
			insertPeople(t, db, s, 10, 20, 30)

			set := criteria.NewSet()
			set.AddWhere(criteria.Criterion{Verb: criteria.VerbIn, Field: "born", Value: criteria.Unset, Options: map[string]any{"month": []any{1, 3}}})
			res, err := db.Query(ctx, backend.OpCount, s, set)
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.Count)

			set = criteria.NewSet()
			set.AddWhere(criteria.Criterion{Verb: criteria.VerbIs, Field: "born", Value: criteria.Unset, Options: map[string]any{"year": 2001}})
			res, err = db.Query(ctx, backend.OpGet, s, set)
			require.NoError(t, err)
			require.Len(t, res.Rows, 1)
			name, _ := res.Rows[0].Get("name")
			assert.Equal(t, "B", name)
		})
	}
}

func TestQuery_Bounds(t *testing.T) {
	db := createTestDB(t, DriverPure)
	s := peopleSchema()
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, s))
	insertPeople(t, db, s, 1, 2, 3, 4, 5)

	set := criteria.NewSet()
	set.SetLimit(2)
	set.SetPage(2)
	res, err := db.Query(ctx, backend.OpGet, s, set)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	name, _ := res.Rows[0].Get("name")
	assert.Equal(t, "C", name)

	set = criteria.NewSet()
	set.SetOffset(3)
	res, err = db.Query(ctx, backend.OpGet, s, set)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestUpdateDelete(t *testing.T) {
	db := createTestDB(t, DriverCGO)
	s := peopleSchema()
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, s))
	insertPeople(t, db, s, 10, 20, 30)

	set := criteria.NewSet()
	set.AddWhere(criteria.Criterion{Verb: criteria.VerbLT, Field: "age", Value: 25})
	n, err := db.Update(ctx, s, []criteria.FieldValue{{Name: "age", Value: 99}}, set)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	set = criteria.NewSet()
	set.AddWhere(criteria.Criterion{Verb: criteria.VerbIs, Field: "age", Value: 99})
	n, err = db.Delete(ctx, s, set)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := db.Raw(ctx, `SELECT COUNT(*) AS n FROM "people"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	count, _ := rows[0].Get("n")
	assert.Equal(t, int64(1), count)
}

func TestInsert_GeneratesUUIDv7(t *testing.T) {
	db := createTestDB(t, DriverCGO)
	s := schema.MustNew("tokens", []schema.Field{
		{Name: "id", Type: schema.TypeUUID, PK: true},
		{Name: "label", Type: schema.TypeString},
	})
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, s))

	id, err := db.Insert(ctx, s, []criteria.FieldValue{{Name: "label", Value: "x"}})
	require.NoError(t, err)
	parsed, err := uuid.Parse(id.(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	id, err = db.Insert(ctx, s, []criteria.FieldValue{{Name: "id", Value: "fixed"}, {Name: "label", Value: "y"}})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
}
