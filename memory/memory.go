package memory

import (
	"github.com/pkg/errors"
)

var ErrInvalidMemoryAccess = errors.New("invalid memory access")

// Memory is the physical store: a flat byte array with no policy of its own.
type Memory struct {
	linear []byte
}

func NewMemory(size int) *Memory {
	return &Memory{linear: make([]byte, size)}
}

func (m *Memory) Size() int {
	return len(m.linear)
}

func (m *Memory) inBounds(addr, sz int) bool {
	return addr >= 0 && sz >= 0 && addr+sz <= len(m.linear)
}

// Read returns a copy of sz bytes starting at addr.
func (m *Memory) Read(addr, sz int) ([]byte, error) {
	if !m.inBounds(addr, sz) {
		return nil, errors.Wrapf(ErrInvalidMemoryAccess, "read address=%x, size=%x", addr, sz)
	}

	out := make([]byte, sz)
	copy(out, m.linear[addr:addr+sz])

	return out, nil
}

func (m *Memory) Write(addr int, data []byte) error {
	if !m.inBounds(addr, len(data)) {
		return errors.Wrapf(ErrInvalidMemoryAccess, "write address=%x, size=%x", addr, len(data))
	}

	copy(m.linear[addr:], data)

	return nil
}

func (m *Memory) Zero(addr, sz int) error {
	if !m.inBounds(addr, sz) {
		return errors.Wrapf(ErrInvalidMemoryAccess, "zero address=%x, size=%x", addr, sz)
	}

	clear(m.linear[addr : addr+sz])

	return nil
}
