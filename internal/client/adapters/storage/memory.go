// Package storage содержит реализации мест хранения учетных данных.
package storage

import (
	"context"
	"sync"

	"tracker/internal/client/ports/storage"
)

// MemoryBackend хранит значения в памяти процесса и теряет их при завершении.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ storage.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend создает пустое хранилище в памяти.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// Get возвращает значение по ключу.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok, nil
}

// Set сохраняет значение.
func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

// Delete удаляет ключи.
func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.values, k)
	}
	return nil
}

// Close очищает хранилище.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.values)
	return nil
}

// Len возвращает число сохраненных ключей.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
