package transport

import (
	"sync"

	"github.com/joshuafuller/dgram/internal/protocol"
)

// bufferPool holds receive buffers sized for the largest UDP datagram, so
// the receive hot path does not allocate 64KB per call.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, protocol.ReceiveBufferSize)
		return &b
	},
}

// GetBuffer returns a pooled receive buffer. Callers must PutBuffer it back
// and must not retain slices of it.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer obtained from GetBuffer to the pool.
func PutBuffer(b *[]byte) {
	if b == nil || cap(*b) < protocol.ReceiveBufferSize {
		return
	}
	*b = (*b)[:protocol.ReceiveBufferSize]
	bufferPool.Put(b)
}
