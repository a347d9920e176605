package main

import "sync"

// BytePool recycles the scratch buffers the responder encodes replies
// into, backing encodeRESPInto on the connection write path.
type BytePool struct {
	pool sync.Pool
}

func NewBytePool() *BytePool {
	return &BytePool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, 1024)
				return &buf
			},
		},
	}
}

// Get returns a zero-length buffer with at least the given capacity.
func (bp *BytePool) Get(capHint int) []byte {
	buf := *bp.pool.Get().(*[]byte)
	if cap(buf) < capHint {
		return make([]byte, 0, capHint)
	}
	return buf[:0]
}

func (bp *BytePool) Put(buf []byte) {
	if cap(buf) > 64*1024 {
		// Don't let one oversized reply grow the pool's steady-state
		// footprint for every connection after it.
		return
	}
	buf = buf[:0]
	bp.pool.Put(&buf)
}

var responsePool = NewBytePool()
