// Package bufpool provides a tiered buffer pool for efficient memory reuse.
//
// The pool hands out reusable byte slices for I/O, reducing GC pressure on
// the hot paths: multipart part buffers during streaming uploads and line
// scanning buffers during processing.
//
// Three size tiers balance memory efficiency with reuse:
//   - Small (64KB): line scanner buffers
//   - Medium (1MB): stream copy buffers
//   - Large (5MB): S3 multipart part buffers
//
// Requests larger than the large tier are allocated directly and not pooled
// so oversized buffers do not linger in memory.
package bufpool

import (
	"sync"
)

// Default buffer size classes.
const (
	// DefaultSmallSize covers line scanning (64KB)
	DefaultSmallSize = 64 << 10

	// DefaultMediumSize covers stream copies (1MB)
	DefaultMediumSize = 1 << 20

	// DefaultLargeSize covers S3 multipart parts (5MB)
	DefaultLargeSize = 5 << 20
)

// Pool manages byte slice pools organized by size class.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// NewPool creates a pool with the given tier sizes. Zero values fall back
// to the defaults.
func NewPool(smallSize, mediumSize, largeSize int) *Pool {
	if smallSize <= 0 {
		smallSize = DefaultSmallSize
	}
	if mediumSize <= 0 {
		mediumSize = DefaultMediumSize
	}
	if largeSize <= 0 {
		largeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  smallSize,
		mediumSize: mediumSize,
		largeSize:  largeSize,
	}
	p.small.New = func() any { b := make([]byte, smallSize); return &b }
	p.medium.New = func() any { b := make([]byte, mediumSize); return &b }
	p.large.New = func() any { b := make([]byte, largeSize); return &b }
	return p
}

// Get returns a buffer with at least the requested capacity, sliced to the
// requested length. Oversized requests are allocated directly.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= p.smallSize:
		buf := *(p.small.Get().(*[]byte))
		return buf[:size]
	case size <= p.mediumSize:
		buf := *(p.medium.Get().(*[]byte))
		return buf[:size]
	case size <= p.largeSize:
		buf := *(p.large.Get().(*[]byte))
		return buf[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the appropriate pool. Buffers that did not come
// from the pool (wrong capacity) are dropped for the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&buf)
	case p.mediumSize:
		p.medium.Put(&buf)
	case p.largeSize:
		p.large.Put(&buf)
	}
}

// defaultPool is the shared process-wide pool.
var defaultPool = NewPool(0, 0, 0)

// Get returns a buffer from the shared pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put returns a buffer to the shared pool.
func Put(buf []byte) { defaultPool.Put(buf) }
