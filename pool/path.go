// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"strconv"
	"sync"
)

// PathBuilder builds element paths such as "PID[2].5[1].1" without
// intermediate string allocations.
type PathBuilder struct {
	buf []byte
}

var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{
			buf: make([]byte, 0, 64),
		}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.Reset()
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	if cap(b.buf) <= 1024 {
		pathBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *PathBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the path.
func (b *PathBuilder) Len() int {
	return len(b.buf)
}

// Segment starts the path with a segment tag.
func (b *PathBuilder) Segment(tag string) *PathBuilder {
	b.buf = append(b.buf, tag...)
	return b
}

// Index appends a 1-based occurrence or repetition index in brackets.
func (b *PathBuilder) Index(n int) *PathBuilder {
	b.buf = append(b.buf, '[')
	b.buf = strconv.AppendInt(b.buf, int64(n), 10)
	b.buf = append(b.buf, ']')
	return b
}

// Position appends a dotted field, component or subcomponent number.
func (b *PathBuilder) Position(n int) *PathBuilder {
	b.buf = append(b.buf, '.')
	b.buf = strconv.AppendInt(b.buf, int64(n), 10)
	return b
}

// String returns the built path.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// BuildPath builds a path using a pooled builder.
//
//	path := pool.BuildPath(func(b *pool.PathBuilder) {
//	    b.Segment("PID").Index(2).Position(5).Position(1)
//	})
func BuildPath(fn func(*PathBuilder)) string {
	pb := AcquirePathBuilder()
	defer pb.Release()
	fn(pb)
	return pb.String()
}

// FieldPath returns "SEG.n", or just the tag when field is 0.
func FieldPath(tag string, field int) string {
	if field <= 0 {
		return tag
	}
	return BuildPath(func(b *PathBuilder) {
		b.Segment(tag).Position(field)
	})
}

// ComponentPath returns "SEG.field.component".
func ComponentPath(tag string, field, component int) string {
	return BuildPath(func(b *PathBuilder) {
		b.Segment(tag).Position(field).Position(component)
	})
}
