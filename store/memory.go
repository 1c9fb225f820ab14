package store

import "sync"

// Memory is an in-process Slot. It backs ephemeral sessions that run
// without a store path, and tests.
type Memory struct {
	mu   sync.Mutex
	data []byte
	ok   bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.ok = true
	return nil
}

func (m *Memory) Load() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok {
		return nil, false, nil
	}
	return append([]byte(nil), m.data...), true, nil
}

func (m *Memory) Close() error { return nil }
