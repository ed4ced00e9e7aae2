package rob

import "sync"

// Allocator provides the backing storage for chunk payload buffers.
// It mirrors a malloc/free pair, adapted to Go: Go's GC already
// manages the skip-list node headers, so the only allocation worth
// routing through a pluggable allocator is the fixed-size chunk_size
// buffer, which is hot (one per chunk, recycled constantly under
// steady-state reassembly) and a good candidate for pooling.
type Allocator interface {
	// Alloc returns a zeroed buffer of exactly n bytes, or an error if
	// none is available.
	Alloc(n int) ([]byte, error)
	// Free releases a buffer previously returned by Alloc. Every Alloc
	// must be matched by exactly one Free.
	Free(b []byte)
}

// HeapAllocator allocates directly from the Go heap and never fails.
// It is the default Allocator when none is supplied.
type HeapAllocator struct{}

// Alloc returns a freshly made, zeroed byte slice of length n.
func (HeapAllocator) Alloc(n int) ([]byte, error) {
	return make([]byte, n), nil
}

// Free is a no-op; the Go garbage collector reclaims the buffer once
// unreferenced.
func (HeapAllocator) Free([]byte) {}

// PoolAllocator recycles same-size buffers through a sync.Pool,
// avoiding a GC-visible allocation for every chunk churned through a
// Buffer under steady-state push/pop traffic. It is safe for
// concurrent use by multiple Buffers sharing one PoolAllocator.
type PoolAllocator struct {
	size int
	pool sync.Pool
}

// NewPoolAllocator returns a PoolAllocator that recycles buffers of
// exactly size bytes. Requests for any other length fall back to a
// plain heap allocation, since the pool can only safely recycle
// uniformly sized buffers.
func NewPoolAllocator(size int) *PoolAllocator {
	p := &PoolAllocator{size: size}
	p.pool.New = func() any {
		return make([]byte, p.size)
	}
	return p
}

// Alloc returns a zeroed buffer of length n, drawn from the pool when
// n matches the configured size.
func (p *PoolAllocator) Alloc(n int) ([]byte, error) {
	if n != p.size {
		return make([]byte, n), nil
	}
	b := p.pool.Get().([]byte)
	clear(b)
	return b, nil
}

// Free returns b to the pool if it matches the configured size,
// otherwise it is simply dropped for the GC to reclaim.
func (p *PoolAllocator) Free(b []byte) {
	if len(b) != p.size {
		return
	}
	p.pool.Put(b)
}
