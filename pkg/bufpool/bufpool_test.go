package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSizeClasses(t *testing.T) {
	p := NewPool()

	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"Small", 100, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"Medium", DefaultSmallSize + 1, DefaultMediumSize},
		{"Large", DefaultMediumSize + 1, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
		{"Negative", -3, DefaultSmallSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := p.Get(tt.size)
			assert.Equal(t, max(tt.size, 0), len(buf))
			assert.Equal(t, tt.wantCap, cap(buf))
			p.Put(buf)
		})
	}
}

func TestCustomClasses(t *testing.T) {
	p := NewPool(512, 128, 0, 512, -1)

	assert.Equal(t, 128, cap(p.Get(1)))
	assert.Equal(t, 512, cap(p.Get(200)))
	assert.Equal(t, 512, p.MaxPooled())
}

func TestPutIgnoresForeignBuffers(t *testing.T) {
	p := NewPool(64)
	assert.NotPanics(t, func() {
		p.Put(nil)
		p.Put(make([]byte, 10))
		p.Put(make([]byte, 0, 128))
	})
}

func TestReuseRestoresLength(t *testing.T) {
	p := NewPool(64)
	buf := p.Get(10)
	buf[0] = 0xAB
	p.Put(buf)

	again := p.Get(64)
	assert.Len(t, again, 64)
}

func TestGlobalPool(t *testing.T) {
	buf := GetUint32(10)
	assert.Len(t, buf, 10)
	Put(buf)
	assert.Len(t, Get(20), 20)
}

func TestConcurrentUse(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b := p.Get(n * 1000)
				if len(b) > 0 {
					b[0] = byte(j)
				}
				p.Put(b)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Put(Get(DefaultMediumSize))
	}
}
