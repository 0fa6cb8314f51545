// Package pools holds the buffer pools shared by the request
// processors. Keep-alive connections spend most of their life idle;
// pooling the read buffers keeps them from pinning memory between
// requests.
package pools

import "sync"

// BytePool is a tiered byte-slice pool.
type BytePool struct {
	pools []*sync.Pool
	sizes []int
}

// Tiers sized for HTTP request heads and small bodies.
var defaultSizes = []int{2048, 8192, 32768}

// NewBytePool creates a pool with the standard size tiers.
func NewBytePool() *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(defaultSizes)),
		sizes: defaultSizes,
	}

	for i, size := range defaultSizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}

	return bp
}

// Get returns a slice of exactly the requested length, drawn from the
// smallest tier that fits. Oversized requests allocate directly.
func (bp *BytePool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			buf := *bp.pools[i].Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a slice to its tier. Slices that did not come from a tier
// are left to the garbage collector.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}
