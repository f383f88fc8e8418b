package proxy

import "sync"

const relayBufferSize = 32 << 10

var relayBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, relayBufferSize)
		return &b
	},
}

func getRelayBuffer() []byte {
	return *relayBuffers.Get().(*[]byte)
}

func putRelayBuffer(b []byte) {
	// This &b forces a 32-byte heap allocation.  There's no way to avoid this when converting a non-pointer to an interface{}.
	relayBuffers.Put(&b)
}
