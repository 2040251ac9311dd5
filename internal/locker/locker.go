// Package locker предоставляет блокировки на уровне отдельного заказа.
package locker

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired возвращается, если блокировку не удалось получить до отмены контекста.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker сериализует операции над одним ключом.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Memory блокирует ключи внутри одного процесса.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewMemory создаёт блокировку внутри процесса.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *Memory) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}
