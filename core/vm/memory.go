package vm

import "github.com/holiman/uint256"

// Memory implements the EVM's byte-addressable, word-aligned-expansion
// memory model (§4.A).
type Memory struct {
	store       []byte
	lastGasCost uint64
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 32-byte word at offset, big-endian, zero-padded.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	clear(m.store[offset : offset+32])
	b := val.Bytes()
	copy(m.store[offset+32-uint64(len(b)):offset+32], b)
}

// Resize grows memory to size bytes; callers are expected to have already
// rounded size up to a 32-byte word boundary and charged the corresponding
// memory-expansion gas (memoryGasCost in gas_dynamic.go).
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

func (m *Memory) Len() int { return len(m.store) }

func (m *Memory) Data() []byte { return m.store }
