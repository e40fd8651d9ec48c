package pool

import "sync"

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// AcquireBuffer gets an empty byte buffer from the pool.
func AcquireBuffer() *[]byte {
	b := bufferPool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// ReleaseBuffer returns a buffer to the pool. Buffers that grew past 64KiB
// are dropped so one large batch does not pin memory.
func ReleaseBuffer(b *[]byte) {
	if b == nil {
		return
	}
	if cap(*b) <= 65536 {
		bufferPool.Put(b)
	}
}
