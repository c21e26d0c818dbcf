package storage

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/yndnr/confmesh-go/pkg/cmap"
)

// RAMBackend keeps staged and committed images in memory.
//
// Nothing survives the process; Discard simulates a power loss between
// staging and commit.
type RAMBackend struct {
	// mu excludes staging while a commit is applied.
	mu        sync.RWMutex
	staged    *cmap.Map[stagedOp]
	committed *cmap.Map[[]byte]
	commits   atomic.Uint64
	closed    atomic.Bool
}

// NewRAMBackend creates an empty RAM backend.
func NewRAMBackend() *RAMBackend {
	return &RAMBackend{
		staged:    cmap.New[stagedOp](),
		committed: cmap.New[[]byte](),
	}
}

// Read returns the staged value of key, or the committed one.
func (b *RAMBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if op, ok := b.staged.Get(key); ok {
		if op.erase {
			return nil, ErrKeyNotFound
		}
		return bytes.Clone(op.data), nil
	}
	if data, ok := b.committed.Get(key); ok {
		return bytes.Clone(data), nil
	}
	return nil, ErrKeyNotFound
}

// Write stages data under key.
func (b *RAMBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.staged.Set(key, stagedOp{data: bytes.Clone(data)})
	return nil
}

// Erase stages the removal of key. Erasing a missing key is not an error.
func (b *RAMBackend) Erase(ctx context.Context, key string) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.staged.Set(key, stagedOp{erase: true})
	return nil
}

// Commit applies every staged change.
func (b *RAMBackend) Commit(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, op := range b.staged.Drain() {
		if op.erase {
			b.committed.Delete(key)
			continue
		}
		b.committed.Set(key, op.data)
	}
	b.commits.Add(1)
	return nil
}

// Discard drops every staged change.
func (b *RAMBackend) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged.Clear()
}

// CommittedKeys returns the keys of the committed image, unordered.
func (b *RAMBackend) CommittedKeys() []string {
	return b.committed.Keys()
}

// Stats returns backend statistics.
func (b *RAMBackend) Stats() Stats {
	return Stats{
		StagedKeys: b.staged.Count(),
		Commits:    b.commits.Load(),
	}
}

// Close releases the backend. Further operations fail with ErrClosed.
func (b *RAMBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *RAMBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
