// Package bufpool recycles frame buffers between requests.
//
// Buffers come from a fixed set of size classes backed by sync.Pool. A
// request is served from the smallest class that fits; anything larger than
// the biggest class is allocated directly and dropped on Put.
//
//	buf := bufpool.Get(n)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sort"
	"sync"
)

// Default size classes, sized for framed RPC traffic.
const (
	DefaultSmallSize  = 4 << 10  // control calls (ping, stats)
	DefaultMediumSize = 64 << 10 // typical payloads
	DefaultLargeSize  = 1 << 20  // default max frame size
)

// Pool is a set of size-classed buffer pools. Safe for concurrent use.
type Pool struct {
	classes []class
}

type class struct {
	size int
	pool *sync.Pool
}

// NewPool creates a pool with the given size classes. Non-positive and
// duplicate sizes are ignored; with no usable sizes the defaults are used.
func NewPool(sizes ...int) *Pool {
	seen := make(map[int]bool, len(sizes))
	var uniq []int
	for _, s := range sizes {
		if s > 0 && !seen[s] {
			seen[s] = true
			uniq = append(uniq, s)
		}
	}
	if len(uniq) == 0 {
		uniq = []int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize}
	}
	sort.Ints(uniq)

	p := &Pool{classes: make([]class, len(uniq))}
	for i, size := range uniq {
		size := size
		p.classes[i] = class{
			size: size,
			pool: &sync.Pool{New: func() any {
				b := make([]byte, size)
				return &b
			}},
		}
	}
	return p
}

// Get returns a slice of length size. Its capacity is the size class it was
// drawn from, or exactly size when no class is large enough.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	for _, c := range p.classes {
		if size <= c.size {
			b := c.pool.Get().(*[]byte)
			return (*b)[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the class matching its capacity. Buffers whose capacity
// matches no class are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, c := range p.classes {
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

// MaxPooled returns the largest size class.
func (p *Pool) MaxPooled() int {
	return p.classes[len(p.classes)-1].size
}

var global = NewPool()

// Get returns a buffer of length size from the package pool.
func Get(size int) []byte {
	return global.Get(size)
}

// Put returns buf to the package pool.
func Put(buf []byte) {
	global.Put(buf)
}

// GetUint32 is Get for wire-level uint32 lengths.
func GetUint32(size uint32) []byte {
	return global.Get(int(size))
}
