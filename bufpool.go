package binser

import (
	"sync"
)

// bufferPool reuses serialisation buffers across Marshal/Encode calls.
// Buffers grown beyond maxPooledCapacity are dropped instead of returned.
var bufferPool = sync.Pool{
	New: func() any {
		return NewBuffer(DefaultInitialCapacity)
	},
}

const maxPooledCapacity = 1 << 20

func getBuffer() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.Clear()
	return b
}

func putBuffer(b *Buffer) {
	if b.Capacity() > maxPooledCapacity {
		return
	}
	b.SetCallback(nil)
	b.suspended = false
	bufferPool.Put(b)
}

// CHUNK_SIZE is the scratch chunk size used when copying streams.
const CHUNK_SIZE = 32 * 1024

// bufPool holds the scratch chunks of Buffer.ReadFrom and the reader WriteTo paths.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, CHUNK_SIZE)
		return &b
	},
}
