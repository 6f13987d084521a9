package kv

import (
	"sort"
	"strings"
	"sync"
)

type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool

	// onCommit runs with mu held after a successful write.
	onCommit func(snapshot map[string]string)
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return keysWithPrefix(m.data, nil, prefix), nil
}

func (m *Memory) Set(key, value string) error {
	return m.Update(func(tx Tx) error { return tx.Set(key, value) })
}

func (m *Memory) Remove(key string) error {
	return m.Update(func(tx Tx) error { return tx.Remove(key) })
}

func (m *Memory) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	tx := &memTx{base: m.data, pending: make(map[string]*string)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.pending) == 0 {
		return nil
	}
	for k, v := range tx.pending {
		if v == nil {
			delete(m.data, k)
			continue
		}
		m.data[k] = *v
	}
	if m.onCommit != nil {
		m.onCommit(m.data)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// memTx buffers writes over a read-only view of the committed data. A nil
// pending value marks a removal.
type memTx struct {
	base    map[string]string
	pending map[string]*string
}

func (t *memTx) Get(key string) (string, bool, error) {
	if v, ok := t.pending[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	v, ok := t.base[key]
	return v, ok, nil
}

func (t *memTx) Keys(prefix string) ([]string, error) {
	return keysWithPrefix(t.base, t.pending, prefix), nil
}

func (t *memTx) Set(key, value string) error {
	t.pending[key] = &value
	return nil
}

func (t *memTx) Remove(key string) error {
	t.pending[key] = nil
	return nil
}

func keysWithPrefix(base map[string]string, pending map[string]*string, prefix string) []string {
	result := make([]string, 0)
	for k := range base {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v, ok := pending[k]; ok && v == nil {
			continue
		}
		result = append(result, k)
	}
	for k, v := range pending {
		if v == nil || !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := base[k]; ok {
			continue
		}
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
