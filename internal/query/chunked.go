package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/viggyfresh/prom/internal/backend"
)

// Chunked walks every row matching a query, one chunk at a time.
//
// The chunk size is the query's limit, or the configured default when no
// limit is set. Only the current chunk is held in memory. Traversal starts
// at the query's offset and ends after the first chunk whose probe found no
// further rows.
//
// Chunked works on a clone, so the originating Query is never modified.
type Chunked struct {
	ctx   context.Context
	query *Query
	size  int

	startOffset int
	offset      int
	chunk       *Results
	hasMore     bool
	loaded      bool

	values bool
	filter func(any) bool

	cur any
	err error
}

func newChunked(ctx context.Context, q *Query) *Chunked {
	c := q.Clone()
	limit, offset, _ := c.set.GetBounds()
	size := limit
	if size <= 0 {
		size = q.chunkSize
	}
	return &Chunked{
		ctx:         ctx,
		query:       c,
		size:        size,
		startOffset: offset,
		offset:      offset,
	}
}

// ChunkSize returns the number of rows fetched per chunk.
func (c *Chunked) ChunkSize() int {
	return c.size
}

// HasMore reports whether rows exist past the loaded chunk.
func (c *Chunked) HasMore() bool {
	return c.hasMore
}

func (c *Chunked) load(offset int) error {
	q := c.query.Clone()
	q.set.SetLimit(c.size)
	q.set.SetOffset(offset)

	chunk, err := q.Get(c.ctx)
	if err != nil {
		return fmt.Errorf("load chunk at offset %d: %w", offset, err)
	}
	if c.values {
		if _, err := chunk.Values(); err != nil {
			return err
		}
	}
	chunk.SetFilter(c.filter)

	c.chunk = chunk
	c.offset = offset
	c.hasMore = chunk.HasMore
	c.loaded = true
	return nil
}

func (c *Chunked) ensure() error {
	if c.loaded {
		return nil
	}
	return c.load(c.startOffset)
}

// Next advances to the next element, fetching the next chunk when the
// current one is exhausted.
func (c *Chunked) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ensure(); err != nil {
		c.err = err
		return false
	}
	for {
		if c.chunk.Next() {
			c.cur = c.chunk.Value()
			return true
		}
		if err := c.chunk.Err(); err != nil {
			c.err = err
			break
		}
		if !c.hasMore {
			break
		}
		if err := c.load(c.offset + c.size); err != nil {
			c.err = err
			break
		}
	}
	c.cur = nil
	return false
}

// Value returns the element Next stopped at.
func (c *Chunked) Value() any {
	return c.cur
}

// Err returns the error that stopped traversal.
func (c *Chunked) Err() error {
	return c.err
}

// Reset restarts traversal at the start offset. The first chunk is reused
// when it is the one loaded.
func (c *Chunked) Reset() {
	c.cur = nil
	c.err = nil
	if c.loaded && c.offset == c.startOffset {
		c.chunk.Reset()
		return
	}
	c.loaded = false
	c.chunk = nil
	c.hasMore = false
	c.offset = c.startOffset
}

// Seq restarts traversal and yields every element.
func (c *Chunked) Seq() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		c.Reset()
		for c.Next() {
			if !yield(c.cur, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

// Field restarts traversal and yields one column of every row, chunk by
// chunk.
func (c *Chunked) Field(name string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		c.Reset()
		if err := c.ensure(); err != nil {
			yield(nil, err)
			return
		}
		for {
			for v, err := range c.chunk.Field(name) {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(v, nil) {
					return
				}
			}
			if !c.hasMore {
				return
			}
			if err := c.load(c.offset + c.size); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// At returns element k counted from the start offset. Indexes inside the
// loaded chunk are answered from memory; anything else is a one-row query.
func (c *Chunked) At(k int) (any, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, k)
	}
	if err := c.ensure(); err != nil {
		return nil, err
	}

	abs := c.startOffset + k
	if abs >= c.offset && abs < c.offset+c.chunk.Len() {
		return c.chunk.At(abs - c.offset)
	}

	q := c.query.Clone()
	q.set.SetOffset(abs)
	res, err := q.execute(c.ctx, backend.OpGetOne, q.request(q.set))
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, k)
	}
	return c.materializer().materialize(row)
}

// Count returns the number of elements the traversal covers. When more rows
// exist past the loaded chunk it asks the backend; otherwise it is computed
// from the chunks already walked.
func (c *Chunked) Count() (int, error) {
	if err := c.ensure(); err != nil {
		return 0, err
	}
	if !c.hasMore {
		return (c.offset - c.startOffset) + c.chunk.Len(), nil
	}

	q := c.query.Clone()
	q.set.ClearBounds()
	n, err := q.Count(c.ctx)
	if err != nil {
		return 0, err
	}
	total := int(n) - c.startOffset
	if total < 0 {
		total = 0
	}
	return total, nil
}

// Values switches every chunk to projection mode.
func (c *Chunked) Values() (*Chunked, error) {
	if len(c.query.set.Fields) == 0 {
		return c, noSelectedFields()
	}
	c.values = true
	if c.loaded {
		if _, err := c.chunk.Values(); err != nil {
			return c, err
		}
	}
	c.Reset()
	return c, nil
}

// SetFilter applies pred to every chunk.
func (c *Chunked) SetFilter(pred func(any) bool) *Chunked {
	c.filter = pred
	if c.loaded {
		c.chunk.SetFilter(pred)
	}
	c.Reset()
	return c
}

func (c *Chunked) materializer() materializer {
	return materializer{
		fields:  c.query.set.FieldNames(),
		factory: c.query.factory,
		values:  c.values,
	}
}
