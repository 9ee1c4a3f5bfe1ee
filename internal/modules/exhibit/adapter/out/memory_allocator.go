package out

import (
	"fmt"
	"sync"
	"sync/atomic"

	"onsetscore/internal/modules/exhibit/domain"
	exhibitout "onsetscore/internal/modules/exhibit/port/out"
)

// MemoryAllocator keeps exhibits in process memory.
type MemoryAllocator struct {
	seq atomic.Uint64
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{}
}

var _ exhibitout.HandleAllocator = (*MemoryAllocator)(nil)

func (a *MemoryAllocator) Allocate(name string, audio []byte) (domain.Handle, error) {
	data := make([]byte, len(audio))
	copy(data, audio)
	return &MemoryHandle{
		name:     name,
		location: fmt.Sprintf("mem://%d/%s", a.seq.Add(1), name),
		data:     data,
	}, nil
}

type MemoryHandle struct {
	name     string
	location string

	mu       sync.Mutex
	data     []byte
	released bool
}

func (h *MemoryHandle) Name() string { return h.name }

func (h *MemoryHandle) Location() string { return h.location }

// Bytes returns the audio, or nil once released.
func (h *MemoryHandle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.data
}

// Release zeroes the buffer so a stale reader never plays old audio.
func (h *MemoryHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	clear(h.data)
	h.released = true
	return nil
}
