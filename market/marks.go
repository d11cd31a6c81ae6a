package market

import (
	"errors"
	"sync"
)

var ErrNoMark = errors.New("mark not found")

// Mark is the latest bar seen for an instrument.
type Mark struct {
	Instrument string
	Bar
}

// MarkStore holds the current bar per instrument.
type MarkStore struct {
	mu    sync.RWMutex
	marks map[string]Mark
}

func NewMarkStore() *MarkStore {
	return &MarkStore{marks: make(map[string]Mark)}
}

func (ms *MarkStore) Set(m Mark) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.marks[m.Instrument] = m
}

func (ms *MarkStore) Get(instr string) (Mark, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	m, ok := ms.marks[instr]
	if !ok {
		return Mark{}, ErrNoMark
	}
	return m, nil
}

// Reset forgets every mark.
func (ms *MarkStore) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.marks = make(map[string]Mark)
}
