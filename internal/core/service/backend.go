package service

import (
	"context"
	"errors"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// Backend is the persistence provider used by Commit and Load.
//
// Writes and erases are staged until Commit. Read of a missing key must
// return an error matching domain.ErrNotFound.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Erase(ctx context.Context, key string) error
	Commit(ctx context.Context) error
}

// SetBackend installs b. nil uninstalls the current backend.
// It may be called before Init and survives Deinit.
func (m *Manager) SetBackend(b Backend) {
	m.mu.Lock()
	m.backend = b
	m.mu.Unlock()
	m.record("set_backend", nil)
}

// backendError wraps a collaborator failure unless it already carries a status.
func backendError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrBackend.WithCause(err)
}
